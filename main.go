package main

import "github.com/ChelseaRhea222/energy-eia-bigquery-etl/cmd"

func main() {
	cmd.Execute()
}

package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/config"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/template"
	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

const (
	createSchemaTemplate = "CREATE SCHEMA IF NOT EXISTS {{.Catalog}}.{{.Schema}};"
	createTableTemplate  = "CREATE TABLE IF NOT EXISTS {{.Table}} ({{join .Columns \", \"}});"
	insertTemplate       = "INSERT INTO {{.Table}} ({{join .Columns \", \"}}) VALUES ({{placeholders (len .Columns)}});"
)

// DuckDB is a Warehouse backed by a local, in-memory or MotherDuck database.
// Datasets map to schemas of the catalog that is current once the connection
// init queries have run.
type DuckDB struct {
	Logger    *slog.Logger
	DB        *sql.DB
	Connector *duckdb.Connector
	DBType    string
	Catalog   string
	ProjectID string
	Dataset   string
	Table     string
	tableID   string
}

func NewDuckDB(config *config.Config, logger *slog.Logger) (*DuckDB, error) {
	var path string
	var dbType string
	if strings.HasPrefix(config.DuckDB.Path, "md:") {
		if config.DuckDB.MotherDuckToken == "" {
			return nil, fmt.Errorf("MOTHERDUCK_TOKEN env variable is not set")
		}
		path = fmt.Sprintf("%s?motherduck_token=%s", config.DuckDB.Path, config.DuckDB.MotherDuckToken)
		dbType = ":md:"
	} else if config.DuckDB.Path == "" || config.DuckDB.Path == ":memory:" {
		path = ""
		dbType = ":memory:"
	} else {
		path = config.DuckDB.Path
		dbType = path
	}

	var connInitFn func(driver.ExecerContext) error
	if len(config.DuckDB.ConnInitFnQueries) == 0 {
		connInitFn = nil
	} else {
		connInitFn = func(exec driver.ExecerContext) error {
			for _, path := range config.DuckDB.ConnInitFnQueries {
				query, err := readQuery(path)
				if err != nil {
					return err
				}

				_, err = exec.ExecContext(context.Background(), string(query), nil)
				if err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", path, err)
				}
			}
			return nil
		}
		logger.Debug(fmt.Sprintf("Connection initialization queries: %v", config.DuckDB.ConnInitFnQueries))
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)

	// A schema named like the database file is ambiguous unless the catalog
	// is spelled out.
	var catalog string
	if err := db.QueryRow("SELECT current_database();").Scan(&catalog); err != nil {
		db.Close()
		connector.Close()
		return nil, fmt.Errorf("failed to read current database: %w", err)
	}

	switch dbType {
	case ":memory:":
		logger.Info("Connected to DuckDB in-memory database")
	case ":md:":
		logger.Info("Connected to MotherDuck database")
	default:
		logger.Info(fmt.Sprintf("Connected to local DuckDB database at %s", dbType))
	}

	return &DuckDB{
		Logger:    logger,
		DB:        db,
		Connector: connector,
		DBType:    dbType,
		Catalog:   catalog,
		ProjectID: config.Warehouse.ProjectID,
		Dataset:   config.Warehouse.Dataset,
		Table:     config.Warehouse.Table,
		tableID:   config.TableID(),
	}, nil
}

func readQuery(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	query, err := io.ReadAll(file)
	if err != nil {
		file.Close() // Ensure the file is closed if reading fails
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return query, nil
}

func (db *DuckDB) Close() error {
	dbErr := db.DB.Close()
	if err := db.Connector.Close(); err != nil {
		return err
	}
	return dbErr
}

// TableID reports the table as {project}.{dataset}.{table}; the project part
// is informational since a DuckDB database has no project.
func (db *DuckDB) TableID() string {
	return db.tableID
}

func (db *DuckDB) qualifiedTable() string {
	return quoteIdent(db.Catalog) + "." + quoteIdent(db.Dataset) + "." + quoteIdent(db.Table)
}

func (db *DuckDB) DatasetExists(ctx context.Context) (bool, error) {
	var n int
	err := db.DB.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.schemata WHERE catalog_name = current_database() AND schema_name = ?",
		db.Dataset,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up schema %s: %w", db.Dataset, err)
	}
	return n > 0, nil
}

func (db *DuckDB) CreateDataset(ctx context.Context) error {
	query, err := template.ExecuteSqlTemplate(createSchemaTemplate, map[string]any{
		"Catalog": quoteIdent(db.Catalog),
		"Schema":  quoteIdent(db.Dataset),
	})
	if err != nil {
		return err
	}
	return db.RunQuery(ctx, query)
}

func (db *DuckDB) TableExists(ctx context.Context) (bool, error) {
	var n int
	err := db.DB.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_catalog = current_database() AND table_schema = ? AND table_name = ?",
		db.Dataset, db.Table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", db.TableID(), err)
	}
	return n > 0, nil
}

func (db *DuckDB) CreateTable(ctx context.Context, schema []Column) error {
	ddl, err := createTableDDL(db.qualifiedTable(), schema)
	if err != nil {
		return err
	}
	db.Logger.Debug("Executing DuckDB query", "query", ddl)
	return db.RunQuery(ctx, ddl)
}

func createTableDDL(table string, schema []Column) (string, error) {
	cols := make([]string, 0, len(schema))
	for _, col := range schema {
		sqlType, err := duckDBType(col.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		cols = append(cols, quoteIdent(col.Name)+" "+sqlType)
	}
	return template.ExecuteSqlTemplate(createTableTemplate, map[string]any{
		"Table":   table,
		"Columns": cols,
	})
}

// Append inserts all rows inside one transaction; on any failure nothing is
// committed.
func (db *DuckDB) Append(ctx context.Context, rows []transform.NormalizedRecord) (written int64, err error) {
	names := ColumnNames(Schema)
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	insert, err := template.ExecuteSqlTemplate(insertTemplate, map[string]any{
		"Table":   db.qualifiedTable(),
		"Columns": quoted,
	})
	if err != nil {
		return 0, err
	}

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err = stmt.ExecContext(ctx, rowValues(row)...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int64(len(rows)), nil
}

func (db *DuckDB) ListDatasets(ctx context.Context) ([]string, error) {
	res, err := db.GetQueryResults(ctx,
		"SELECT schema_name FROM information_schema.schemata WHERE catalog_name = current_database() ORDER BY schema_name;")
	if err != nil {
		return nil, err
	}
	return res["schema_name"], nil
}

func (db *DuckDB) RunQuery(ctx context.Context, query string) error {
	_, err := db.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

// GetQueryResults executes a query and returns the results as a map of column names to slices of values
func (db *DuckDB) GetQueryResults(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make(map[string][]string)
	for _, col := range columns {
		results[col] = []string{}
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			results[col] = append(results[col], fmt.Sprintf("%v", values[i]))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return results, nil
}

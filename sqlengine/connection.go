package sqlengine

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

// ConnectionProps describes a connection. Pointer fields are optional and
// leave the database/sql default alone when nil.
type ConnectionProps struct {
	ConnString   string  `yaml:"connString" validate:"required"`
	Driver       string  `yaml:"driver"`
	ServiceName  *string `yaml:"serviceName"`
	MaxIdleConns *int    `yaml:"maxIdleConns" validate:"omitempty,min=0"`
	MaxOpenConns *int    `yaml:"maxOpenConns" validate:"omitempty,min=0"`
	MaxIdleTime  *int    `yaml:"maxIdleTime" validate:"omitempty,min=0"`
	MaxLifeTime  *int    `yaml:"maxLifeTime" validate:"omitempty,min=0"`
}

func testConnection(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	return nil
}

// Open creates a database connection using the provided arguments. With a
// service name the connection is traced.
func Open(props ConnectionProps) (*sql.DB, error) {
	if props.Driver == "" {
		props.Driver = "postgres"
	}

	var db *sql.DB
	var err error
	if props.ServiceName != nil {
		sqltrace.Register(
			props.Driver,
			&pq.Driver{},
			sqltrace.WithServiceName(*props.ServiceName),
		)
		db, err = sqltrace.Open(props.Driver, props.ConnString)
	} else {
		db, err = sql.Open(props.Driver, props.ConnString)
	}
	if err != nil {
		return nil, err
	}

	if props.MaxIdleConns != nil {
		db.SetMaxIdleConns(*props.MaxIdleConns)
	}

	if props.MaxIdleTime != nil {
		db.SetConnMaxIdleTime(time.Duration(*props.MaxIdleTime * int(time.Second)))
	}

	if props.MaxLifeTime != nil {
		db.SetConnMaxLifetime(time.Duration(*props.MaxLifeTime * int(time.Second)))
	}

	if props.MaxOpenConns != nil {
		db.SetMaxOpenConns(*props.MaxOpenConns)
	}

	if err := testConnection(db); err != nil {
		return nil, err
	}
	return db, nil
}

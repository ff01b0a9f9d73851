/*
Copyright The Postgres User Controller Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package pool contain an implementation of a connection pool to multiple
// database pointing to the same instance
package pool

import (
	"database/sql"
	"fmt"
)

// ConnectionPool is a repository of DB connections, pointing to the same instance
// given a base DSN without the "dbname" parameter
type ConnectionPool struct {
	// This is the base connection string (without the "dbname" parameter)
	baseConnectionString string

	// Sizing applied to every opened database handle
	maxOpenConnections int
	maxIdleConnections int

	// A map of connection for every used database
	connectionMap map[string]*sql.DB
}

// NewConnectionPool creates a new connection pool given the base connection
// string and the sizing limits applied to every database handle. minConnections
// connections are kept idle and ready, up to maxConnections can be open at once
func NewConnectionPool(baseConnectionString string, minConnections, maxConnections int) *ConnectionPool {
	return &ConnectionPool{
		baseConnectionString: baseConnectionString,
		maxOpenConnections:   maxConnections,
		maxIdleConnections:   minConnections,
		connectionMap:        make(map[string]*sql.DB),
	}
}

// Connection gets the connection for the given database
func (pool *ConnectionPool) Connection(dbname string) (*sql.DB, error) {
	if result, ok := pool.connectionMap[dbname]; ok {
		return result, nil
	}

	connection, err := pool.newConnection(dbname)
	if err != nil {
		return nil, err
	}

	pool.connectionMap[dbname] = connection
	return connection, nil
}

// ShutdownConnections closes every database connection
func (pool *ConnectionPool) ShutdownConnections() {
	for _, db := range pool.connectionMap {
		_ = db.Close()
	}

	pool.connectionMap = make(map[string]*sql.DB)
}

// newConnection creates a database handle for a database with
// a certain name, applying the pool sizing limits
func (pool *ConnectionPool) newConnection(dbname string) (*sql.DB, error) {
	dsn := pool.GetDsn(dbname)
	db, err := NewDBConnection(dsn, ConnectionProfilePostgresql)
	if err != nil {
		return nil, fmt.Errorf("cannot create connection pool: %w", err)
	}

	db.SetMaxOpenConns(pool.maxOpenConnections)
	db.SetMaxIdleConns(pool.maxIdleConnections)

	return db, nil
}

// GetDsn returns the connection string for a given database
func (pool *ConnectionPool) GetDsn(dbname string) string {
	return fmt.Sprintf("%s dbname=%s", pool.baseConnectionString, dbname)
}

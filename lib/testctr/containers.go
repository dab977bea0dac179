//
// See the file COPYRIGHT for copyright information.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package testctr starts throwaway database containers for integration tests.
package testctr

import (
	"context"
	"errors"
	"fmt"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"log/slog"
)

const (
	MariaDBVersion     = "10.5.27"
	MariaDBDockerImage = "mariadb:" + MariaDBVersion

	PostgresVersion     = "16.4-alpine"
	PostgresDockerImage = "postgres:" + PostgresVersion
)

// MariaDBContainer creates and runs a MariaDB TestContainer, returning the
// host port that 3306 is mapped to.
//
// If there is an error on startup, the container is terminated before returning.
// The caller must still defer cleanup, e.g. by `t.Cleanup(cleanup)`.
func MariaDBContainer(ctx context.Context, database, username, password string) (
	ctr testcontainers.Container,
	cleanup func(),
	port int32,
	err error,
) {
	return start(ctx, testcontainers.ContainerRequest{
		Image:        MariaDBDockerImage,
		ExposedPorts: []string{"3306/tcp"},
		WaitingFor:   wait.ForLog("port: 3306  mariadb.org binary distribution"),
		Env: map[string]string{
			"MARIADB_RANDOM_ROOT_PASSWORD": "true",
			"MARIADB_DATABASE":             database,
			"MARIADB_USER":                 username,
			"MARIADB_PASSWORD":             password,
		},
	}, "3306/tcp")
}

// PostgresContainer creates and runs a Postgres TestContainer, returning a
// DSN for the new database.
func PostgresContainer(ctx context.Context, database, username, password string) (
	ctr testcontainers.Container,
	cleanup func(),
	dsn string,
	err error,
) {
	ctr, cleanup, port, err := start(ctx, testcontainers.ContainerRequest{
		Image:        PostgresDockerImage,
		ExposedPorts: []string{"5432/tcp"},
		// The server restarts once after initdb, so the line shows up twice.
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		Env: map[string]string{
			"POSTGRES_DB":       database,
			"POSTGRES_USER":     username,
			"POSTGRES_PASSWORD": password,
		},
	}, "5432/tcp")
	if err != nil {
		return ctr, cleanup, "", err
	}
	host, err := ctr.Host(ctx)
	if err != nil {
		cleanup()
		return ctr, cleanup, "", fmt.Errorf("[Host]: %w", err)
	}
	dsn = fmt.Sprintf("postgres://%v:%v@%v:%d/%v?sslmode=disable", username, password, host, port, database)
	return ctr, cleanup, dsn, nil
}

func start(ctx context.Context, req testcontainers.ContainerRequest, exposed nat.Port) (
	testcontainers.Container, func(), int32, error,
) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	cleanup := func() {
		if ctr == nil {
			return
		}
		if err := ctr.Terminate(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Failed to terminate container", "image", req.Image, "error", err)
		}
	}
	if err != nil {
		cleanup()
		return ctr, cleanup, 0, fmt.Errorf("[GenericContainer]: %w", err)
	}
	natPort, err := ctr.MappedPort(ctx, exposed)
	if err != nil {
		cleanup()
		return ctr, cleanup, 0, errors.Join(errors.New("container started without its port mapped"), err)
	}
	return ctr, cleanup, int32(natPort.Int()), nil
}

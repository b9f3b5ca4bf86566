package common

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProbeReadiness checks that the database answers within the deadline of ctx.
func ProbeReadiness(ctx context.Context, database *sql.DB, writeablePaths []string) ([]string, error) {
	var res []string

	start := time.Now()
	if err := database.PingContext(ctx); err != nil {
		return append(res, "Ping database: failed."), errors.Wrap(err, "database ping failed")
	}
	res = append(res, "Ping database: "+time.Since(start).String()+".")

	out, err := probeWriteablePaths(writeablePaths)
	res = append(res, out...)

	return res, err
}

// ProbeLiveness additionally runs a query on the database, a stuck pool fails it.
func ProbeLiveness(ctx context.Context, database *sql.DB, writeablePaths []string) ([]string, error) {
	res, err := ProbeReadiness(ctx, database, writeablePaths)
	if err != nil {
		return res, err
	}

	var one int
	start := time.Now()
	if err := database.QueryRowContext(ctx, "SELECT 1;").Scan(&one); err != nil {
		return append(res, "Query database: failed."), errors.Wrap(err, "database query failed")
	}

	return append(res, "Query database: "+time.Since(start).String()+"."), nil
}

func probeWriteablePaths(paths []string) ([]string, error) {
	res := make([]string, 0, len(paths))

	for _, p := range paths {
		f, err := os.CreateTemp(p, ".probe-*")
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Probe path is not writeable")
			return append(res, "Write "+p+": failed."), errors.Wrapf(err, "path %s is not writeable", p)
		}

		name := f.Name()
		_ = f.Close()
		if err := os.Remove(name); err != nil {
			return append(res, "Remove "+filepath.Base(name)+": failed."), errors.Wrapf(err, "failed to remove probe file in %s", p)
		}

		res = append(res, "Write "+p+": ok.")
	}

	return res, nil
}

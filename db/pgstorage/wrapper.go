package pgstorage

import (
	"context"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// execQuerierWrapper adds before and after logs to every query
type execQuerierWrapper struct {
	execQuerier
}

func (w *execQuerierWrapper) Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error) {
	logger := log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID))
	startTime := time.Now()
	logger.Debugf("DB query begin, method[Exec], sql[%v]", removeNewLine(sql))

	tag, err := w.execQuerier.Exec(ctx, sql, arguments...)

	logger.Debugf("DB query end, method[Exec], sql[%v] rowsAffected[%v] err[%v] processTime[%v]",
		removeNewLine(sql), tag.RowsAffected(), err, time.Since(startTime).String())
	return tag, err
}

func (w *execQuerierWrapper) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	logger := log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID))
	startTime := time.Now()
	logger.Debugf("DB query begin, method[QueryRow], sql[%v]", removeNewLine(sql))

	row := w.execQuerier.QueryRow(ctx, sql, args...)

	logger.Debugf("DB query end, sql[%v] method[QueryRow], processTime[%v]", removeNewLine(sql), time.Since(startTime).String())
	return row
}

func removeNewLine(s string) string {
	return strings.Replace(s, "\n", " ", -1)
}

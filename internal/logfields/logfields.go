// Package logfields holds canonical slog attribute keys shared across packages.
package logfields

import (
	"log/slog"
	"time"
)

const (
	KeyPath       = "path"
	KeyPaths      = "paths"
	KeyKind       = "kind"
	KeyStatus     = "status"
	KeyRoot       = "root"
	KeyClients    = "clients"
	KeyConnID     = "conn_id"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Paths(ps []string) slog.Attr   { return slog.Any(KeyPaths, ps) }
func Kind(k string) slog.Attr       { return slog.String(KeyKind, k) }
func Status(code int) slog.Attr     { return slog.Int(KeyStatus, code) }
func Root(r string) slog.Attr       { return slog.String(KeyRoot, r) }
func Clients(n int) slog.Attr       { return slog.Int(KeyClients, n) }
func ConnID(id string) slog.Attr    { return slog.String(KeyConnID, id) }
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(KeyDurationMS, d.Milliseconds())
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

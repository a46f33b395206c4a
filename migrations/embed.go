// Package migrations embeds the SQL migration files into the binary so
// Railrunner can migrate its database without the files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory inside FS holding the migrations.
const Dir = "."

package assessly

import "embed"

// EmailFS holds the email templates, one directory per template with an
// html.tmpl and a plaintext.tmpl.
//
//go:embed templates/emails
var EmailFS embed.FS

// MigrationsFS holds the ordered SQL schema migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

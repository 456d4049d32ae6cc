package finzap

import "embed"

// MigrationsFS holds the SQL migrations applied at startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// PromptsFS holds the versioned prompt templates sent to the model.
//
//go:embed prompts/*.txt
var PromptsFS embed.FS

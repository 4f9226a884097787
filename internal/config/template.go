package config

// Template is the schemaclone.toml written by `schemaclone init`.
const Template = `# schemaclone configuration

default_environment = "local"

[environments.local]
description = "Local PostgreSQL server"
url = "postgres://localhost:5432/postgres?sslmode=disable"
database = "sales"
schema = "public"
# schemas = ["public", "reporting"]
# driver = "postgres"
# driver_path = "drivers/custom.so"

[provision]
clear_change_history = true
delete_create_target = true
log_table = "SCHEMACLONE_CHANGELOG"
lock_table = "SCHEMACLONE_CHANGELOCK"
schema_failure_policy = "require-any"

[transform]
drop = ["remarks"]

[transform.suffix]
catalogName = "Clone"

[logging]
level = "info"
format = "console"

[metrics]
# file = "schemaclone.prom"
`

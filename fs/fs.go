package appfs

import "embed"

// FS holds the SQL migrations & email templates shipped inside the binaries.
//
//go:embed migrations/*.sql templates/email/*
var FS embed.FS

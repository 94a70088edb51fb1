package repository

import "embed"

// Migrations встроенные goose-миграции схемы solves
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir каталог миграций внутри Migrations
const MigrationsDir = "migrations"

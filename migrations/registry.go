package migrations

import (
	"io/fs"
	"regexp"
	"sort"
	"strings"

	acumatica "github.com/goliatone/go-acumatica"
	"github.com/goliatone/go-acumatica/core"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Tables created by the embedded migrations, one per sql store.
const (
	TokensTable            = "acumatica_tokens"
	WebhookDeliveriesTable = "acumatica_webhook_deliveries"
	RateLimitStateTable    = "acumatica_rate_limit_state"
)

const rootPath = "data/sql/migrations"

var createTablePattern = regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?"?([a-z0-9_]+)"?`)

// Tables lists the tables the store packages expect after migrating.
func Tables() []string {
	return []string{TokensTable, WebhookDeliveriesTable, RateLimitStateTable}
}

// Set is the validated migration tree for one dialect.
type Set struct {
	Dialect string
	Path    string
	FS      fs.FS
	// Ups holds the *.up.sql files in apply order.
	Ups []string
}

// Registrar receives SQL migration trees. *persistence.Client satisfies it.
type Registrar interface {
	RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations
}

var _ Registrar = (*persistence.Client)(nil)

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", core.NewBadInputError("migrations: unsupported driver "+driver, map[string]any{
			"driver": driver,
		})
	}
}

// Load resolves the embedded migrations for dialect. Every up file needs a
// down pair, and the tree must create every table in Tables.
func Load(dialect string) (Set, error) {
	return load(acumatica.GetMigrationsFS(), dialect)
}

// Register validates the migrations for dialect and adds them to registrar.
func Register(registrar Registrar, dialect string) (Set, error) {
	if registrar == nil {
		return Set{}, core.NewBadInputError("migrations: registrar is required", nil)
	}
	set, err := Load(dialect)
	if err != nil {
		return Set{}, err
	}
	registrar.RegisterSQLMigrations(set.FS)
	return set, nil
}

func load(root fs.FS, dialect string) (Set, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	path := rootPath
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		path = rootPath + "/sqlite"
	default:
		return Set{}, core.NewBadInputError("migrations: unsupported dialect "+dialect, map[string]any{
			"dialect": dialect,
		})
	}

	sub, err := fs.Sub(root, path)
	if err != nil {
		return Set{}, core.NewInternalError(err, "migrations: resolve "+path, nil)
	}
	ups, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return Set{}, core.NewInternalError(err, "migrations: glob "+path, nil)
	}
	if len(ups) == 0 {
		return Set{}, core.NewNotFoundError("migrations: no *.up.sql files in "+path, map[string]any{
			"dialect": dialect,
		})
	}
	sort.Strings(ups)

	created := map[string]bool{}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(sub, down); err != nil {
			return Set{}, core.NewNotFoundError("migrations: "+up+" has no down migration", map[string]any{
				"dialect": dialect,
				"file":    up,
			})
		}
		content, err := fs.ReadFile(sub, up)
		if err != nil {
			return Set{}, core.NewInternalError(err, "migrations: read "+up, nil)
		}
		for _, match := range createTablePattern.FindAllStringSubmatch(string(content), -1) {
			created[strings.ToLower(match[1])] = true
		}
	}

	var missing []string
	for _, table := range Tables() {
		if !created[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return Set{}, core.NewNotFoundError("migrations: "+dialect+" tree does not create "+strings.Join(missing, ", "), map[string]any{
			"dialect": dialect,
			"missing": strings.Join(missing, ","),
		})
	}

	return Set{Dialect: dialect, Path: path, FS: sub, Ups: ups}, nil
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

With --backup, a consistent copy of the database is written to the given
absolute path before any migration runs.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")
	cmd.Flags().String("backup", "", "write a backup to this absolute path first")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")
	backup, _ := cmd.Flags().GetString("backup")

	dbPath := config.DatabasePath(viper.GetViper())
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStore(store)

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		cmd.Println(cli.RenderBox("🗄️ Base de datos", cli.RenderTable(
			[]string{"Campo", "Valor"},
			[][]string{
				{"ruta", dbPath},
				{"versión actual", fmt.Sprint(current)},
				{"versión esperada", fmt.Sprint(storage.ExpectedSchemaVersion)},
			},
		)))
		return nil
	}

	if backup != "" {
		path := config.ExpandPath(backup)
		if err := store.Backup(ctx, path); err != nil {
			return err
		}
		cmd.Println(cli.FormatSuccess("Respaldo escrito en " + path))
	}

	slog.Info("running database migrations", "database", dbPath, "from_version", current)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Esquema en la versión %d", storage.ExpectedSchemaVersion)))
	return nil
}

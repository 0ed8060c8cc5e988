package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/clock"
	"github.com/smallbiznis/residence/internal/config"
	"github.com/smallbiznis/residence/internal/ingestkey"
	"github.com/smallbiznis/residence/internal/migration"
	"github.com/smallbiznis/residence/internal/observability"
	"github.com/smallbiznis/residence/internal/server"
	"github.com/smallbiznis/residence/pkg/db"
	"go.uber.org/fx"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-ingest-key" {
		if err := hashIngestKey(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// hashIngestKey reads a meter ingest key from stdin and prints the value
// to put in METER_INGEST_KEY_HASH.
func hashIngestKey() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty key")
	}
	hash, err := ingestkey.Hash(key)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

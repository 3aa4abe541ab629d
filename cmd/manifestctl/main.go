// manifestctl validates the official manifest and appends accepted mint
// entries through the same invariant checks the watcher applies.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/config"
	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
	"github.com/HattoriHanzo12/Random-Faces/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		os.Exit(runValidate(os.Args[2:], cfg))
	case "add":
		os.Exit(runAdd(os.Args[2:], cfg, logger))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manifestctl <validate|add> [flags]")
}

func loadState(manifestPath, configPath string) (model.Manifest, model.CollectionConfig, error) {
	manifest, err := store.LoadManifest(manifestPath)
	if err != nil {
		return nil, model.CollectionConfig{}, err
	}
	collection, err := store.LoadCollectionConfig(configPath)
	if err != nil {
		return nil, model.CollectionConfig{}, err
	}
	return manifest, collection, nil
}

func runValidate(args []string, cfg *config.Config) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	manifestPath := fs.String("manifest", cfg.Paths.Manifest, "path to the official manifest JSON")
	configPath := fs.String("config", cfg.Paths.Config, "path to the inscription config JSON")
	fs.Parse(args)

	manifest, collection, err := loadState(*manifestPath, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if violations := manifest.Validate(collection); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "manifest validation failed:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "  - "+v)
		}
		return 1
	}

	fmt.Printf("manifest OK (%d/%d official mints, %d unique wallet(s))\n",
		len(manifest), collection.EffectiveMaxSupply(), manifest.UniqueWalletCount())
	return 0
}

func runAdd(args []string, cfg *config.Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	manifestPath := fs.String("manifest", cfg.Paths.Manifest, "path to the official manifest JSON")
	configPath := fs.String("config", cfg.Paths.Config, "path to the inscription config JSON")
	slug := fs.String("slug", "", "entry slug, e.g. classic-face-007")
	title := fs.String("title", "", "entry title")
	seed := fs.String("seed", "", "renderer seed string")
	inscriptionID := fs.String("inscription-id", "", "ordinals inscription id")
	minterAddress := fs.String("minter-address", "", "minter wallet address")
	mintedAt := fs.String("minted-at", "", "mint timestamp (defaults to now, UTC)")
	image := fs.String("image", "", "optional repo-relative image path under visuals/")
	explorerURL := fs.String("explorer-url", "", "explorer URL (defaults to ordinals.com)")
	dryRun := fs.Bool("dry-run", false, "validate and print the entry without writing")
	fs.Parse(args)

	missing := missingRequiredFlags([]requiredFlag{
		{"slug", *slug},
		{"title", *title},
		{"seed", *seed},
		{"inscription-id", *inscriptionID},
		{"minter-address", *minterAddress},
	})
	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "missing required flags: %s\n", strings.Join(missing, ", "))
		return 2
	}

	manifest, collection, err := loadState(*manifestPath, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	entry := buildEntry(*slug, *title, *seed, *inscriptionID, *minterAddress, *mintedAt, *image, *explorerURL, time.Now().UTC())
	next := append(append(model.Manifest{}, manifest...), entry)

	if violations := next.Validate(collection); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "entry rejected:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "  - "+v)
		}
		return 1
	}

	if *dryRun {
		encoded, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(encoded))
		return 0
	}

	if err := store.WriteManifest(*manifestPath, next); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger.Info("manifest entry added",
		"slug", entry.Slug, "inscription", entry.InscriptionID, "total", len(next))
	return 0
}

type requiredFlag struct {
	name  string
	value string
}

// missingRequiredFlags reports empty flags in declaration order.
func missingRequiredFlags(required []requiredFlag) []string {
	missing := []string{}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, "--"+f.name)
		}
	}
	return missing
}

func buildEntry(slug, title, seed, inscriptionID, minterAddress, mintedAt, image, explorerURL string, now time.Time) model.ManifestEntry {
	id := strings.ToLower(strings.TrimSpace(inscriptionID))
	if strings.TrimSpace(explorerURL) == "" {
		explorerURL = "https://ordinals.com/inscription/" + id
	}
	if strings.TrimSpace(mintedAt) == "" {
		mintedAt = now.Format("2006-01-02T15:04:05.000Z")
	}
	return model.ManifestEntry{
		Slug:          strings.TrimSpace(slug),
		Title:         strings.TrimSpace(title),
		Seed:          strings.TrimSpace(seed),
		InscriptionID: id,
		ExplorerURL:   strings.TrimSpace(explorerURL),
		MinterAddress: strings.TrimSpace(minterAddress),
		MintedAt:      strings.TrimSpace(mintedAt),
		Image:         strings.TrimSpace(image),
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
)

// SeedFile is the YAML layout accepted by the seed command.
type SeedFile struct {
	TenantID int64       `yaml:"tenantId"`
	Entries  []SeedEntry `yaml:"entries"`
}

type SeedEntry struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Format   string   `yaml:"format"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load knowledge entries for a tenant from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().Int64("tenant", 0, "override the tenantId in the file")
	seedCmd.Flags().Bool("dry-run", false, "validate entries without writing them")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	seed, err := ParseSeed(f)
	if err != nil {
		return err
	}
	if tenant, _ := cmd.Flags().GetInt64("tenant"); tenant > 0 {
		seed.TenantID = tenant
	}

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	var inv CacheInvalidator
	if !dryRun {
		var closeCache func()
		inv, closeCache = openCache(cfg)
		defer closeCache()
	}

	n, err := Seed(cmd.Context(), ingestion.NewProcessor(store, nil), inv, seed, dryRun)
	if err != nil {
		return err
	}

	verb := "Created"
	if dryRun {
		verb = "Validated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries for tenant %d\n", verb, n, seed.TenantID)
	return nil
}

func ParseSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(seed.Entries) == 0 {
		return nil, fmt.Errorf("seed file has no entries")
	}
	return &seed, nil
}

// Seed validates every entry before writing any, so a bad file leaves the
// store untouched. Once anything is written the tenant's match cache is
// invalidated through inv, which may be nil.
func Seed(ctx context.Context, proc *ingestion.Processor, inv CacheInvalidator, seed *SeedFile, dryRun bool) (int, error) {
	inputs := make([]ingestion.EntryInput, 0, len(seed.Entries))
	for i, e := range seed.Entries {
		in := ingestion.EntryInput{
			TenantID: seed.TenantID,
			Question: e.Question,
			Answer:   e.Answer,
			Category: e.Category,
			Tags:     e.Tags,
			Format:   e.Format,
		}
		if _, err := proc.PrepareEntry(in); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i+1, err)
		}
		inputs = append(inputs, in)
	}
	if dryRun {
		return len(inputs), nil
	}

	for i, in := range inputs {
		if _, err := proc.CreateEntry(ctx, in); err != nil {
			if i > 0 {
				invalidate(ctx, inv, seed.TenantID)
			}
			return i, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	invalidate(ctx, inv, seed.TenantID)
	return len(inputs), nil
}

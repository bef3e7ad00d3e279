package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akolanti/GoRAG/internal/bootstrap"
	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/rag"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/spf13/cobra"
)

var (
	ingestChunkSize   int
	ingestOverlapSize int
	ingestReset       bool
	ingestNoIndex     bool
	queryTopK         int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <project_id> <file>...",
	Short: "Upload local files into a project, chunk and index them",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query <project_id> <question>",
	Short: "Answer a question from a project's documents",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed <project_id> [file_id]",
	Short: "Embed stored chunks again, for one file or the whole project",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runReembed,
}

var assetsCmd = &cobra.Command{
	Use:   "assets <project_id>",
	Short: "List the files registered in a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssets,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("%s %s\n", config.AppName, config.AppVersion)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", config.DefaultChunkSize, "characters per chunk")
	ingestCmd.Flags().IntVar(&ingestOverlapSize, "overlap", config.DefaultOverlapSize, "characters shared by neighbouring chunks")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "delete the project's chunks and vectors before ingesting")
	ingestCmd.Flags().BoolVar(&ingestNoIndex, "no-index", false, "persist chunks without embedding them")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "chunks to retrieve (0 = config default)")

	rootCmd.AddCommand(ingestCmd, queryCmd, reembedCmd, assetsCmd, versionCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := ensureApp(cmd)
	if err != nil {
		return err
	}
	projectId := args[0]
	if ingestReset {
		if err := a.Ingest.ResetProject(cmd.Context(), projectId); err != nil {
			return fmt.Errorf("reset %s: %w", projectId, err)
		}
	}
	results := make([]ingest.IngestResult, 0, len(args)-1)
	for _, path := range args[1:] {
		res, err := a.IngestFile(cmd.Context(), projectId, path, bootstrap.IngestFileOptions{
			ChunkSize:   ingestChunkSize,
			OverlapSize: ingestOverlapSize,
			NoIndex:     ingestNoIndex,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		results = append(results, res)
		if !jsonOutput {
			cmd.Printf("%s: %d chunks, %d vectors, %s\n", path, res.ChunksPersisted, res.VectorsUpserted, res.FinalState)
		}
	}
	if jsonOutput {
		return printJSON(cmd, results)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := ensureApp(cmd)
	if err != nil {
		return err
	}
	answer, err := a.RAG.Answer(cmd.Context(), rag.AnswerRequest{
		ProjectId: args[0],
		Query:     strings.Join(args[1:], " "),
		TopK:      queryTopK,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, map[string]any{"answer": answer.Text, "sources": answer.Sources})
	}
	cmd.Println(answer.Text)
	cmd.Println()
	for i, src := range answer.Sources {
		cmd.Printf("[%d] %.3f %s#%d\n", i+1, src.Score, src.AssetId, src.ChunkOrder)
	}
	return nil
}

func runReembed(cmd *cobra.Command, args []string) error {
	a, err := ensureApp(cmd)
	if err != nil {
		return err
	}
	assetName := ""
	if len(args) == 2 {
		assetName = args[1]
	}
	res, err := a.Ingest.Reembed(cmd.Context(), args[0], assetName)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	cmd.Printf("%d vectors upserted, %s\n", res.VectorsUpserted, res.FinalState)
	return nil
}

func runAssets(cmd *cobra.Command, args []string) error {
	a, err := ensureApp(cmd)
	if err != nil {
		return err
	}
	assets, err := a.Registry.ListAssets(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, assets)
	}
	if len(assets) == 0 {
		cmd.Println("No assets.")
		return nil
	}
	for _, asset := range assets {
		cmd.Printf("%s\t%s\t%d\n", asset.AssetName, asset.AssetType, asset.AssetSize)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

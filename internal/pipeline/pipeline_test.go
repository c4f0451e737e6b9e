package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sharpts/sharpts/internal/buildconfig"
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/tast"
)

func TestLinkThenEncodeProducesALoadableBinary(t *testing.T) {
	mod := &tast.Module{ID: "app"}
	ctx := NewContext(&buildconfig.Config{Entry: "app.ts"}, []*tast.Module{mod})

	out := New(LinkProcessor{}, EncodeProcessor{}).Run(ctx)

	if out.Image == nil {
		t.Fatalf("linking must leave an image on the context")
	}
	if len(out.Binary) == 0 {
		t.Fatalf("encoding must leave the serialized image on the context")
	}
	back, err := bytecode.Decode(out.Binary)
	if err != nil {
		t.Fatalf("the binary must decode back into an image: %v", err)
	}
	if back.EntryPoint == "" || back.Functions[back.EntryPoint] == nil {
		t.Fatalf("decoded image must carry a callable entry point")
	}
}

func TestEmbedProcessorBundlesMatchedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "static"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "static", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &buildconfig.Config{Entry: "app.ts", Embed: []string{"static/*.txt"}}
	ctx := NewContext(cfg, []*tast.Module{{ID: "app"}})
	out := New(LinkProcessor{}, EmbedProcessor{BaseDir: dir}, EncodeProcessor{}).Run(ctx)

	if string(out.Image.Resources["static/a.txt"]) != "hello" {
		t.Fatalf("matched file must land in the image resources, got %v", out.Image.Resources)
	}
}

func TestStagesKeepRunningAfterDiagnostics(t *testing.T) {
	// an unresolved import records a diagnostic but must not stop the
	// pipeline from producing a best-effort image
	mod := &tast.Module{ID: "app", Statements: []tast.Stmt{
		&tast.ImportDecl{Path: "missing", Specifiers: []tast.ImportSpecifier{{Kind: tast.ImportNamed, Remote: "x", Local: "x"}}},
	}}
	ctx := NewContext(&buildconfig.Config{Entry: "app.ts"}, []*tast.Module{mod})
	out := New(LinkProcessor{}, EncodeProcessor{}).Run(ctx)

	if !out.Bag.HasErrors() {
		t.Fatalf("the unresolved import must be diagnosed")
	}
	if out.Image == nil || len(out.Binary) == 0 {
		t.Fatalf("diagnostics never abort the run")
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diseasepredict/internal/common"
	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/ml"
)

func main() {
	modelDir := flag.String("models", common.DefaultModelDir, "Model directory")
	backend := flag.String("backend", common.DefaultModelBackend, "Model backend: script, remote, linear, lightgbm")
	remoteURL := flag.String("remote", "", "Inference server URL for the remote backend")
	disease := flag.String("disease", diagnosis.Diabetes, "Disease form to test")
	values := flag.String("values", "", "Comma-separated feature values; zeros when empty")
	flag.Parse()

	fmt.Println("🧪 Testing model integration")
	fmt.Println("============================")

	absDir, err := filepath.Abs(*modelDir)
	if err != nil {
		log.Fatalf("❌ Failed to get absolute path: %v", err)
	}
	fmt.Printf("📁 Model dir: %s\n", absDir)

	catalog := diagnosis.DefaultCatalog()
	f, ok := catalog.Get(*disease)
	if !ok {
		log.Fatalf("❌ Unknown disease %q", *disease)
	}

	file := f.Artifact
	switch ml.Backend(*backend) {
	case ml.BackendLinear:
		file = strings.TrimSuffix(file, filepath.Ext(file)) + ".json"
	case ml.BackendLightGBM:
		file = strings.TrimSuffix(file, filepath.Ext(file)) + ".txt"
	}

	fmt.Println("\n🔧 Step 1: Loading model...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry, err := ml.LoadRegistry(ctx, ml.RegistryConfig{
		Dir:           absDir,
		Backend:       ml.Backend(*backend),
		Artifacts:     []ml.Artifact{{ID: f.ID, File: file, ExpectedFeatures: f.ExpectedFeatures}},
		Remote:        ml.RemoteConfig{BaseURL: *remoteURL},
		VerifyOnStart: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to load model: %v", err)
	}
	for _, e := range registry.Entries() {
		fmt.Printf("✅ Loaded %s (%s, fitted features: %d, schema mismatch: %v)\n",
			e.ID, e.Backend, e.FittedFeatures, e.SchemaMismatch)
	}

	input := make([]string, f.ExpectedFeatures)
	if *values != "" {
		input = strings.Split(*values, ",")
	} else {
		for i := range input {
			input[i] = "0"
		}
	}

	fmt.Printf("\n🔧 Step 2: Predicting %s with %d values...\n", f.Name, len(input))
	out, err := diagnosis.NewDispatcher(catalog, registry).Predict(ctx, f.ID, input)
	if err != nil {
		msg := err.Error()
		var de *diagnosis.Error
		if errors.As(err, &de) {
			msg = de.UserMessage()
		}
		fmt.Printf("❌ %s\n", msg)
		os.Exit(1)
	}

	fmt.Printf("✅ Result: %s (raw %s, %v)\n", out.Label, out.Raw, out.Latency)
}

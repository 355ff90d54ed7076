// cmd/tools/worker-generator/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"copro-diagnostic/pkg/registry"
)

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., diagnostic.market.benchmark)")
	outputDir := flag.String("output", "./internal/workers/", "Root directory of the workers")
	registryPath := flag.String("registry", "", "Path to the activity registry JSON file (built-in registry when empty)")
	check := flag.Bool("check", false, "Report registry activities that have no worker and exit non-zero")
	flag.Parse()

	reg, err := loadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}

	if *check {
		missing := Missing(*outputDir, reg)
		for _, a := range missing {
			fmt.Printf("missing worker: %s (%s)\n", a.ID, WorkerDir(*outputDir, a))
		}
		if len(missing) > 0 {
			os.Exit(1)
		}
		fmt.Printf("All %d activities have a worker.\n", len(reg.Activities))
		return
	}

	if *activity == "" {
		fmt.Println("Usage: worker-generator -activity <id> [-output <dir>] [-registry <path>]")
		fmt.Println("       worker-generator -check [-output <dir>]")
		os.Exit(1)
	}

	var found *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == *activity {
			found = &reg.Activities[i]
			break
		}
	}
	if found == nil {
		fmt.Printf("Activity '%s' not found in registry\n", *activity)
		os.Exit(1)
	}

	written, err := Generate(*outputDir, *found)
	if err != nil {
		fmt.Printf("Error generating worker: %v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement Execute in handler.go\n")
	fmt.Printf("  2. Write tests in handler_test.go\n")
	fmt.Printf("  3. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  4. Add its settings under workers: in configs/config.yaml\n")
}

func loadRegistry(path string) (*registry.ActivityRegistry, error) {
	if path == "" {
		return registry.Builtin()
	}
	return registry.LoadRegistry(path)
}

// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)

	listPath := listCmd.String("path", "", "Registry file (built-in registry when empty)")
	validatePath := validateCmd.String("path", "", "Registry file (built-in registry when empty)")
	exportOut := exportCmd.String("out", "configs/activity-registry.json", "Destination file")

	updatePath := updateCmd.String("path", "configs/activity-registry.json", "Registry file to update")
	id := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, displayName, description, timeout, retries)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		err = listActivities(os.Stdout, *listPath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(os.Stdout, *validatePath)

	case "export":
		exportCmd.Parse(os.Args[2:])
		err = exportRegistry(*exportOut)
		if err == nil {
			fmt.Printf("Registry exported to %s\n", *exportOut)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *id == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateActivity(*updatePath, *id, *field, *value)
		if err == nil {
			fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  list      List activities and their task types
  validate  Validate a registry file, or the built-in registry
  export    Write the built-in registry to a file
  update    Update a field of an activity in a registry file
  help      Show this help message

Examples:
  registry-updater list
  registry-updater validate -path configs/activity-registry.json
  registry-updater export -out configs/activity-registry.json
  registry-updater update -id diagnostic.market.benchmark -field timeout -value 8s`)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rthompson/todosync/internal/model"
)

var (
	exportFormat string
	exportOut    string
)

// exportDoc is the document shape written by "tds export".
type exportDoc struct {
	Lists []exportList `json:"lists" yaml:"lists"`
}

type exportList struct {
	Name  string       `json:"name" yaml:"name"`
	Tasks []model.Task `json:"tasks" yaml:"tasks"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the local working set",
	Long:  `Export all lists and tasks as JSON or YAML, grouped by list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		doc := exportDoc{}
		tasks := a.engine.Tasks()
		for _, c := range a.engine.Containers() {
			el := exportList{Name: c.Name, Tasks: []model.Task{}}
			for _, t := range tasks {
				if t.ContainerID == c.LocalID {
					el.Tasks = append(el.Tasks, t)
				}
			}
			doc.Lists = append(doc.Lists, el)
		}

		var data []byte
		switch exportFormat {
		case "json":
			data, err = json.MarshalIndent(doc, "", "  ")
		case "yaml":
			data, err = yaml.Marshal(doc)
		default:
			return fmt.Errorf("unknown format %q (want json or yaml)", exportFormat)
		}
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}

		if exportOut == "" || exportOut == "-" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		fmt.Printf("Exported %d lists to %s\n", len(doc.Lists), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

package export

import (
	"fmt"

	"github.com/tealeg/xlsx"

	"genai-chat/internal/app/runner"
)

// ToExcel writes one row per batch result.
func ToExcel(results []runner.Result, outputFilePath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Results")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	headerRow.AddCell().Value = "#"
	headerRow.AddCell().Value = "Prompt"
	headerRow.AddCell().Value = "Response"
	headerRow.AddCell().Value = "Finish Reason"
	headerRow.AddCell().Value = "Prompt Tokens"
	headerRow.AddCell().Value = "Completion Tokens"
	headerRow.AddCell().Value = "Elapsed (ms)"
	headerRow.AddCell().Value = "Error Message"

	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Index + 1)
		row.AddCell().Value = r.Prompt
		row.AddCell().Value = r.Text()

		var finish string
		var prompt, completion int
		if r.Response != nil {
			finish = r.Response.ResponseMetadata.FinishReason
			if u := r.Response.ResponseMetadata.Usage; u != nil {
				prompt, completion = u.PromptTokens, u.CompletionTokens
			}
		}
		row.AddCell().Value = finish
		row.AddCell().SetInt(prompt)
		row.AddCell().SetInt(completion)
		row.AddCell().SetInt64(r.Elapsed.Milliseconds())

		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		row.AddCell().Value = errMsg
	}

	if err := file.Save(outputFilePath); err != nil {
		return fmt.Errorf("save %s: %w", outputFilePath, err)
	}
	return nil
}

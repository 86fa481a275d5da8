// Package display renders processed examples as tables in the terminal, to inspect what the
// model will be trained on.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/tokenizers/api"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	indexStyle  = cellStyle.Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return indexStyle
			default:
				return cellStyle
			}
		})
}

// truncate s to at most n runes, if n > 0.
func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// WordLabels renders up to maxN examples (all if maxN <= 0), each as its list of (word, label)
// pairs. Cells are truncated to truncAt characters (no truncation if truncAt <= 0).
func WordLabels(examples [][]labeling.WordLabel, maxN, truncAt int) string {
	t := newTable("#", "word / target label")
	for i, pairs := range examples {
		if maxN > 0 && i >= maxN {
			break
		}
		parts := make([]string, len(pairs))
		for j, pair := range pairs {
			parts[j] = fmt.Sprintf("(%s, %s)", pair.Word, pair.Label)
		}
		t.Row(strconv.Itoa(i), truncate(strings.Join(parts, " "), truncAt))
	}
	return t.String()
}

// TokenLabels renders up to maxN examples, each as its list of token/label pairs.
func TokenLabels(examples [][]labeling.TokenLabel, maxN, truncAt int) string {
	t := newTable("#", "token / target label")
	for i, pairs := range examples {
		if maxN > 0 && i >= maxN {
			break
		}
		parts := make([]string, len(pairs))
		for j, pair := range pairs {
			parts[j] = fmt.Sprintf("%s:%s", pair.Token, pair.Label)
		}
		t.Row(strconv.Itoa(i), truncate(strings.Join(parts, " "), truncAt))
	}
	return t.String()
}

// MaskedLM renders up to maxN masked language model samples: the tokens the model has to
// predict are shown in brackets, e.g. "the [cat] sat". Special tokens are not shown.
//
// inputIDs and labels hold one sequence per sample; labels holds the original token in the
// positions to predict and ignoreID elsewhere.
func MaskedLM(tok api.WordTokenizer, inputIDs, labels [][]int, ignoreID, maxN, truncAt int) string {
	t := newTable("#", "text", "masked")
	for i, ids := range inputIDs {
		if maxN > 0 && i >= maxN {
			break
		}
		var text, masked []string
		for j, id := range ids {
			label := ignoreID
			if i < len(labels) && j < len(labels[i]) {
				label = labels[i][j]
			}
			if label == ignoreID && tok.IsSpecialID(id) {
				continue
			}
			token, _ := tok.IDToToken(id)
			if label != ignoreID {
				target, _ := tok.IDToToken(label)
				text = append(text, "["+target+"]")
				masked = append(masked, "["+token+"]")
				continue
			}
			text = append(text, token)
			masked = append(masked, token)
		}
		t.Row(strconv.Itoa(i), truncate(strings.Join(text, " "), truncAt), truncate(strings.Join(masked, " "), truncAt))
	}
	return t.String()
}

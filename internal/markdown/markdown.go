// Package markdown extracts code from Markdown-formatted model answers and
// renders code back into fenced blocks.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a Markdown document.
type CodeBlock struct {
	Language string
	Code     string
}

// CodeBlocks parses body and returns its fenced code blocks in document order.
// Indented code blocks are ignored; models use them for prose as often as code.
func CodeBlocks(body []byte) []CodeBlock {
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	blocks := make([]CodeBlock, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fenced, ok := n.(*gmast.FencedCodeBlock)
		if !ok {
			return gmast.WalkContinue, nil
		}
		var sb strings.Builder
		lines := fenced.Lines()
		for i := range lines.Len() {
			seg := lines.At(i)
			sb.Write(seg.Value(body))
		}
		blocks = append(blocks, CodeBlock{
			Language: strings.ToLower(string(fenced.Language(body))),
			Code:     strings.TrimRight(sb.String(), "\n"),
		})
		return gmast.WalkSkipChildren, nil
	})
	return blocks
}

// ExtractCode returns the code from answer. The first block tagged with
// language wins, then the first block of any language. An answer without
// fenced blocks is returned trimmed.
func ExtractCode(answer, language string) string {
	blocks := CodeBlocks([]byte(answer))
	if len(blocks) == 0 {
		return strings.TrimSpace(answer)
	}
	language = strings.ToLower(language)
	for _, b := range blocks {
		if language != "" && b.Language == language {
			return b.Code
		}
	}
	return blocks[0].Code
}

// Fence wraps code in a fenced block tagged with language ("plaintext" when
// empty). The fence is longer than any backtick run inside code.
func Fence(language, code string) string {
	if language == "" {
		language = "plaintext"
	}
	fence := strings.Repeat("`", max(3, longestRun(code, '`')+1))
	return fence + language + "\n" + code + "\n" + fence
}

func longestRun(s string, c byte) int {
	longest, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			cur++
			longest = max(longest, cur)
			continue
		}
		cur = 0
	}
	return longest
}

package export

import (
	"bytes"
	"embed"
	"html/template"
	"sort"
	"strings"
	"time"

	"journeymap/api/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var boardTemplate = template.Must(template.New("board.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"humanize": func(kind string) string {
		return strings.ReplaceAll(kind, "_", " ")
	},
}).ParseFS(templateFS, "templates/board.html"))

const defaultPhaseColor = "#6366f1"

// BoardView is the data handed to the board template.
type BoardView struct {
	Title       string
	Description string
	ProjectName string
	GeneratedAt time.Time
	Phases      []PhaseView
}

type PhaseView struct {
	Name    string
	Color   string
	Columns []ColumnView
}

type ColumnView struct {
	Emotion *EmotionView
	Blocks  []BlockView
}

type EmotionView struct {
	Intensity int
	Label     string
	Emoji     string
	Mood      string
}

type BlockView struct {
	Type        string
	Title       string
	Content     string
	Note        string
	Emoji       string
	Color       string
	SheetsLabel string
	SheetsValue string
	Tags        []TagView
}

type TagView struct {
	Name  string
	Color string
}

// BuildView arranges a board tree into phase, column and block order.
func BuildView(tree store.BoardTree, projectName string, now time.Time) BoardView {
	view := BoardView{
		Title:       tree.Board.Name,
		Description: tree.Board.Description,
		ProjectName: projectName,
		GeneratedAt: now,
	}

	tags := make(map[string]store.Tag, len(tree.Tags))
	for _, t := range tree.Tags {
		tags[t.ID] = t
	}
	blockTags := make(map[string][]TagView)
	for _, bt := range tree.BlockTags {
		if t, ok := tags[bt.TagID]; ok {
			blockTags[bt.BlockID] = append(blockTags[bt.BlockID], TagView{Name: t.Name, Color: t.Color})
		}
	}
	for id := range blockTags {
		sort.Slice(blockTags[id], func(i, j int) bool { return blockTags[id][i].Name < blockTags[id][j].Name })
	}

	sheets := make(map[string]store.SheetsConnection, len(tree.SheetsConnections))
	for _, c := range tree.SheetsConnections {
		sheets[c.BlockID] = c
	}
	emotions := make(map[string]store.Emotion, len(tree.Emotions))
	for _, e := range tree.Emotions {
		emotions[e.ColumnID] = e
	}

	blocksByColumn := make(map[string][]store.Block)
	for _, b := range tree.Blocks {
		blocksByColumn[b.ColumnID] = append(blocksByColumn[b.ColumnID], b)
	}
	columnsByPhase := make(map[string][]store.Column)
	for _, c := range tree.Columns {
		columnsByPhase[c.PhaseID] = append(columnsByPhase[c.PhaseID], c)
	}

	phases := append([]store.Phase(nil), tree.Phases...)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })
	for _, p := range phases {
		pv := PhaseView{Name: p.Name, Color: p.Color}
		if pv.Color == "" {
			pv.Color = defaultPhaseColor
		}
		columns := columnsByPhase[p.ID]
		sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })
		for _, c := range columns {
			cv := ColumnView{}
			if e, ok := emotions[c.ID]; ok {
				cv.Emotion = &EmotionView{Intensity: e.Intensity, Label: e.Label, Emoji: e.Emoji, Mood: mood(e.Intensity)}
			}
			blocks := blocksByColumn[c.ID]
			sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Position < blocks[j].Position })
			for _, b := range blocks {
				bv := BlockView{
					Type:    b.Type,
					Title:   b.Title,
					Content: b.Content,
					Note:    b.Note,
					Emoji:   b.Emoji,
					Color:   b.Color,
					Tags:    blockTags[b.ID],
				}
				if conn, ok := sheets[b.ID]; ok && conn.LastValue != nil {
					bv.SheetsLabel = conn.Label
					bv.SheetsValue = *conn.LastValue
				}
				cv.Blocks = append(cv.Blocks, bv)
			}
			pv.Columns = append(pv.Columns, cv)
		}
		view.Phases = append(view.Phases, pv)
	}
	return view
}

func mood(intensity int) string {
	switch {
	case intensity > 0:
		return "positive"
	case intensity < 0:
		return "negative"
	}
	return "neutral"
}

// RenderBoardHTML renders the board template with provided data
func RenderBoardHTML(view BoardView) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

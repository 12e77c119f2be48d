package normalize

import (
	"fmt"
	"strings"
)

// renderStructured dispatches to the renderer for one structured UI
// key (spec.md §4.1.1). All renderers trim whitespace from inputs;
// items with empty titles are skipped.
func renderStructured(key string, payload any) string {
	body, _ := payload.(map[string]any)
	switch key {
	case "_quickReplies":
		return renderQuickReplies(body)
	case "_buttons":
		return renderButtons(body)
	case "_list":
		return renderList(body)
	case "_gallery":
		return renderGallery(body)
	case "_adaptiveCard":
		return renderAdaptiveCard(body)
	default:
		return ""
	}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func items(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if mm, ok := r.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out
}

func imageSuffix(m map[string]any, key string) string {
	if u := str(m, key); u != "" {
		return " ![image](" + u + ")"
	}
	return ""
}

func renderQuickReplies(body map[string]any) string {
	label := str(body, "text")
	var b strings.Builder
	b.WriteString(label)
	for _, item := range items(body, "quickReplies") {
		title := str(item, "title")
		if title == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(title)
		b.WriteString(imageSuffix(item, "imageUrl"))
	}
	return b.String()
}

func renderButtons(body map[string]any) string {
	label := str(body, "text")
	var b strings.Builder
	b.WriteString(label)
	for _, item := range items(body, "buttons") {
		title := str(item, "title")
		if title == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(title)
		if str(item, "type") == "web_url" {
			if u := str(item, "url"); u != "" {
				b.WriteString(": ")
				b.WriteString(u)
			}
		}
	}
	return b.String()
}

func renderList(body map[string]any) string {
	header := str(body, "header")
	if header == "" {
		header = str(body, "text")
	}
	var b strings.Builder
	b.WriteString(header)
	for _, item := range items(body, "items") {
		title := str(item, "title")
		if title == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(title)
		if subtitle := str(item, "subtitle"); subtitle != "" {
			b.WriteString(": ")
			b.WriteString(subtitle)
		}
		b.WriteString(imageSuffix(item, "imageUrl"))
	}
	return b.String()
}

func renderGallery(body map[string]any) string {
	intro := str(body, "text")
	if intro == "" {
		intro = "Here are some options:"
	}
	var b strings.Builder
	b.WriteString(intro)
	for _, item := range items(body, "items") {
		title := str(item, "title")
		if title == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(title)
		if subtitle := str(item, "subtitle"); subtitle != "" {
			b.WriteString(": ")
			b.WriteString(subtitle)
		}
		b.WriteString(imageSuffix(item, "imageUrl"))
	}
	return b.String()
}

// renderAdaptiveCard performs a depth-first recursion over a rich
// card's body and its actions, dispatching by element type.
func renderAdaptiveCard(body map[string]any) string {
	var lines []string
	for _, el := range items(body, "body") {
		lines = append(lines, renderCardElement(el)...)
	}
	for _, action := range items(body, "actions") {
		lines = append(lines, renderCardElement(action)...)
	}
	return strings.Join(lines, "\n")
}

func renderCardElement(el map[string]any) []string {
	switch str(el, "type") {
	case "TextBlock":
		if t := str(el, "text"); t != "" {
			return []string{t}
		}
		return nil

	case "FactSet":
		var out []string
		for _, fact := range items(el, "facts") {
			title, value := str(fact, "title"), str(fact, "value")
			out = append(out, fmt.Sprintf("%s: %s", title, value))
		}
		return out

	case "Input.Text", "Input.Date", "Input.Number", "Input.Time":
		label, placeholder := str(el, "label"), str(el, "placeholder")
		switch {
		case label != "" && placeholder != "":
			return []string{fmt.Sprintf("%s (%s)", label, placeholder)}
		case label != "":
			return []string{label}
		case placeholder != "":
			return []string{placeholder}
		default:
			return nil
		}

	case "Input.ChoiceSet":
		var out []string
		if label := str(el, "label"); label != "" {
			out = append(out, label)
		}
		for _, choice := range items(el, "choices") {
			if title := str(choice, "title"); title != "" {
				out = append(out, "- "+title)
			}
		}
		return out

	case "Input.Toggle":
		if title := str(el, "title"); title != "" {
			return []string{title}
		}
		return nil

	case "ColumnSet":
		var out []string
		for _, col := range items(el, "columns") {
			for _, item := range items(col, "items") {
				out = append(out, renderCardElement(item)...)
			}
		}
		return out

	case "Container":
		var out []string
		for _, item := range items(el, "items") {
			out = append(out, renderCardElement(item)...)
		}
		return out

	case "Action.Submit", "Action.OpenUrl", "Action.ShowCard", "Action.Execute":
		return []string{"[Action: " + str(el, "title") + "]"}

	default:
		return nil
	}
}

package services

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"alfredoptarigan/readysetrole/internal/models"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseScores pulls the score object stored under key (e.g. "scores" or
// "post_scores") out of a model reply. A bare object carrying "overall" is
// accepted too. Anything unusable yields zeroed scores, never an error.
func ParseScores(text, key string) models.Scores {
	scores := models.ZeroScores()

	obj, ok := findObject(text, key, "overall")
	if !ok {
		return scores
	}

	scores.Overall = obj.Get("overall").Float()
	obj.Get("subscores").ForEach(func(name, value gjson.Result) bool {
		scores.Subscores[name.String()] = value.Float()
		return true
	})
	for _, kw := range obj.Get("missing_keywords").Array() {
		if s := strings.TrimSpace(kw.String()); s != "" {
			scores.MissingKeywords = append(scores.MissingKeywords, s)
		}
	}
	scores.Explanation = strings.TrimSpace(obj.Get("explanation").String())

	return scores
}

// ParsePacks reads the "packs" array from a model reply. Unusable output gives
// an empty list. Packs without an id are numbered by position.
func ParsePacks(text string) []models.Pack {
	packs := []models.Pack{}

	for _, candidate := range jsonCandidates(text) {
		if !gjson.Valid(candidate) {
			continue
		}

		arr := gjson.Get(candidate, "packs")
		if !arr.IsArray() {
			continue
		}

		for i, p := range arr.Array() {
			if !p.IsObject() {
				continue
			}

			id := int(p.Get("id").Int())
			if id <= 0 {
				id = i + 1
			}

			pack := models.Pack{
				ID:       id,
				Name:     strings.TrimSpace(p.Get("name").String()),
				Keywords: []string{},
				Delta:    p.Get("delta").Float(),
			}
			for _, kw := range p.Get("keywords").Array() {
				if s := strings.TrimSpace(kw.String()); s != "" {
					pack.Keywords = append(pack.Keywords, s)
				}
			}
			packs = append(packs, pack)
		}
		return packs
	}

	return packs
}

func findObject(text, key, marker string) (gjson.Result, bool) {
	for _, candidate := range jsonCandidates(text) {
		if !gjson.Valid(candidate) {
			continue
		}

		root := gjson.Parse(candidate)
		if v := root.Get(key); v.IsObject() {
			return v, true
		}
		if root.Get(marker).Exists() {
			return root, true
		}
	}
	return gjson.Result{}, false
}

// jsonCandidates lists fenced ```json blocks first, then the widest {...}
// span of the whole reply.
func jsonCandidates(text string) []string {
	var candidates []string
	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	if obj := extractJSON(text); obj != "" {
		candidates = append(candidates, obj)
	}
	return candidates
}

// extractJSON tries to extract a JSON object from text that might contain markdown or other formatting
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return text[start : end+1]
}

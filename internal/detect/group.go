package detect

import (
	"strconv"
	"strings"
)

// TypeKey derives a grouping key from a free-text label: the text before the
// first "(", trimmed. A label without "(" keys on the whole trimmed label.
func TypeKey(label string) string {
	if i := strings.IndexByte(label, '('); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

// Group is the runtime-only set of detections sharing a TypeKey. Groups are
// rebuilt on every call and never contain zero members.
type Group struct {
	Type    string      `json:"type"`
	Members []Detection `json:"members"`

	// Indices holds each member's position in the list passed to GroupByType.
	Indices []int `json:"indices"`
}

// Len is the number of members.
func (g Group) Len() int { return len(g.Members) }

// Material resolves the group's type key.
func (g Group) Material() Material { return ParseMaterial(g.Type) }

// Bounds is the union of the members' boxes.
func (g Group) Bounds() Box {
	if len(g.Members) == 0 {
		return Box{}
	}
	b := g.Members[0].BoundingBox
	for _, m := range g.Members[1:] {
		b = b.Union(m.BoundingBox)
	}
	return b
}

// MeanConfidence is the arithmetic mean of the members' confidences.
func (g Group) MeanConfidence() float64 {
	return meanConfidence(g.Members)
}

// Caption is the summary label drawn above a group's merged region.
func (g Group) Caption() string {
	return g.Type + " (" + strconv.Itoa(len(g.Members)) + " items)"
}

// GroupByType partitions dets by TypeKey. Groups appear in order of their
// key's first occurrence; members keep their input order.
func GroupByType(dets []Detection) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for i, d := range dets {
		key := d.TypeKey()
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{Type: key})
		}
		groups[gi].Members = append(groups[gi].Members, d)
		groups[gi].Indices = append(groups[gi].Indices, i)
	}
	return groups
}

// GroupStats summarizes one group for textual display.
type GroupStats struct {
	Type              string   `json:"type"`
	Material          Material `json:"material"`
	Color             string   `json:"color"`
	Items             int      `json:"items"`
	MeanConfidence    float64  `json:"mean_confidence"`
	ConfidencePercent int      `json:"confidence_percent"`
	Level             string   `json:"level"`
}

// Stats summarizes a detection list: item count, distinct types and mean
// confidence, overall and per group.
type Stats struct {
	Items             int          `json:"items"`
	Types             int          `json:"types"`
	MeanConfidence    float64      `json:"mean_confidence"`
	ConfidencePercent int          `json:"confidence_percent"`
	Groups            []GroupStats `json:"groups"`
}

// Summarize computes Stats over dets. An empty list yields zero values and
// an empty Groups slice.
func Summarize(dets []Detection) Stats {
	groups := GroupByType(dets)
	mean := meanConfidence(dets)

	st := Stats{
		Items:             len(dets),
		Types:             len(groups),
		MeanConfidence:    mean,
		ConfidencePercent: Percent(mean),
		Groups:            make([]GroupStats, 0, len(groups)),
	}
	for _, g := range groups {
		m := g.Material()
		gm := g.MeanConfidence()
		st.Groups = append(st.Groups, GroupStats{
			Type:              g.Type,
			Material:          m,
			Color:             HexOf(m),
			Items:             g.Len(),
			MeanConfidence:    gm,
			ConfidencePercent: Percent(gm),
			Level:             ConfidenceLevel(gm),
		})
	}
	return st
}

// ConfidenceLevel buckets a confidence for display: "high" above 0.8,
// "medium" above 0.5, "low" otherwise.
func ConfidenceLevel(c float64) string {
	switch p := Percent(c); {
	case p > 80:
		return "high"
	case p > 50:
		return "medium"
	default:
		return "low"
	}
}

func meanConfidence(dets []Detection) float64 {
	if len(dets) == 0 {
		return 0
	}
	var sum float64
	for _, d := range dets {
		sum += d.Confidence
	}
	return sum / float64(len(dets))
}

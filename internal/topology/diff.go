package topology

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
)

// ChangeAction classifies a resource change between two templates.
type ChangeAction string

const (
	ChangeAdd    ChangeAction = "add"
	ChangeRemove ChangeAction = "remove"
	ChangeModify ChangeAction = "modify"
)

// Change is one resource that differs between two templates.
type Change struct {
	LogicalID string
	Type      string
	Action    ChangeAction
	Detail    string
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Action, c.LogicalID, c.Type)
}

// Diff compares a deployed template with a freshly synthesized one. Both are
// normalized first, so a template compared with its own rendering yields no
// changes. Changes are sorted by logical ID.
func Diff(deployed, synthesized *Template) ([]Change, error) {
	oldT, err := deployed.Normalize()
	if err != nil {
		return nil, err
	}
	newT, err := synthesized.Normalize()
	if err != nil {
		return nil, err
	}

	var changes []Change
	for id, oldRes := range oldT.Resources {
		newRes, ok := newT.Resources[id]
		if !ok {
			changes = append(changes, Change{LogicalID: id, Type: oldRes.Type, Action: ChangeRemove})
			continue
		}
		if d := cmp.Diff(oldRes, newRes); d != "" {
			changes = append(changes, Change{LogicalID: id, Type: newRes.Type, Action: ChangeModify, Detail: d})
		}
	}
	for id, newRes := range newT.Resources {
		if _, ok := oldT.Resources[id]; !ok {
			changes = append(changes, Change{LogicalID: id, Type: newRes.Type, Action: ChangeAdd})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].LogicalID < changes[j].LogicalID
	})
	return changes, nil
}

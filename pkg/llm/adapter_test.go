package llm

import "testing"

func TestContextSystemAndTurns(t *testing.T) {
	c := Context{Messages: []Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleSystem, Content: "c"},
	}}
	if c.System() != "a\nc" {
		t.Fatalf("System() = %q", c.System())
	}
	if turns := c.Turns(); len(turns) != 1 || turns[0].Content != "b" {
		t.Fatalf("Turns() = %+v", turns)
	}
}

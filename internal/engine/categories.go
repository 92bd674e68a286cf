package engine

import (
	"fmt"
	"strings"
)

// DefaultCategories are installed by SeedDefaultCategories.
var DefaultCategories = []Category{
	{Name: "Health", Description: "Exercise, nutrition and sleep", Icon: "fitness", Color: "#4CAF50", BaseXP: 15},
	{Name: "Productivity", Description: "Work and personal projects", Icon: "briefcase", Color: "#2196F3", BaseXP: 20},
	{Name: "Learning", Description: "Study, reading and courses", Icon: "school", Color: "#9C27B0", BaseXP: 25},
	{Name: "Finance", Description: "Budgeting, saving and investing", Icon: "cash", Color: "#FF9800", BaseXP: 20},
	{Name: "Social", Description: "Friends, family and community", Icon: "people", Color: "#E91E63", BaseXP: 15},
	{Name: "Home", Description: "Cleaning, cooking and chores", Icon: "home", Color: "#795548", BaseXP: 10},
	{Name: "Creativity", Description: "Art, music and writing", Icon: "color-palette", Color: "#00BCD4", BaseXP: 20},
	{Name: "Mindfulness", Description: "Meditation and reflection", Icon: "leaf", Color: "#8BC34A", BaseXP: 15},
	{Name: "Adventure", Description: "Travel and new experiences", Icon: "compass", Color: "#FF5722", BaseXP: 30},
	{Name: "Habits", Description: "Small daily routines", Icon: "repeat", Color: "#607D8B", BaseXP: 10},
}

func validateCategory(c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if c.BaseXP <= 0 {
		return &ValidationError{Field: "base_xp", Reason: fmt.Sprintf("must be positive; got %d", c.BaseXP)}
	}
	return nil
}

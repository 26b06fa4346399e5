// Package schemas embeds the JSON Schemas for paintopt input files.
package schemas

import _ "embed"

// RequestSchemaJSON is the schema for optimization request files.
//
//go:embed request.schema.json
var RequestSchemaJSON string

// RecipeSchemaJSON is the schema for recipe files.
//
//go:embed recipe.schema.json
var RecipeSchemaJSON string

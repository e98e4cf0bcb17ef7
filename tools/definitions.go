// Function definition generation for the model.
//
// Information Hiding:
// - Schema assembly and description injection hidden
// - Memoization keying and invalidation hidden
package tools

import (
	"encoding/json"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// descriptionParam is the name of the property injected into every tool
// schema so the model explains each call.
const descriptionParam = "description"

const descriptionParamDoc = "One short sentence describing why this tool is being called"

const definitionCacheSize = 32

// PluginView is the plugin-activation state consulted when filtering tool
// visibility. Tools with an empty plugin name are core and always visible.
type PluginView interface {
	// ActiveNames returns the active plugin names in sorted order.
	ActiveNames() []string
	// Enabled reports whether tools owned by the named plugin are visible.
	Enabled(plugin string) bool
}

// allPluginsActive is the PluginView used when no plugin manager is wired.
type allPluginsActive struct{}

func (allPluginsActive) ActiveNames() []string { return nil }
func (allPluginsActive) Enabled(string) bool { return true }

// FunctionDefinitions builds the model-facing schema list, filtered by
// plugin-activation state and agent visibility. Results are memoized by a
// key composed of the sorted active-plugin set, the excluded names, and the
// agent name; the cache is invalidated whenever a tool is registered or
// unregistered.
func (o *Orchestrator) FunctionDefinitions(exclude []string, agent string) []openai.Tool {
	key := o.definitionCacheKey(exclude, agent)
	if defs, ok := o.defsCache.Get(key); ok {
		return defs
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	var defs []openai.Tool
	for _, meta := range o.registry.List() {
		if excluded[meta.Name] {
			continue
		}
		if !o.plugins.Enabled(meta.Plugin) {
			continue
		}
		if !agentAllowed(meta, agent) {
			continue
		}
		defs = append(defs, buildDefinition(meta))
	}

	o.defsCache.Add(key, defs)
	return defs
}

// definitionCacheKey encodes the key parts as JSON so names containing
// separator characters cannot collide with a different part combination.
func (o *Orchestrator) definitionCacheKey(exclude []string, agent string) string {
	sortedExclude := append([]string(nil), exclude...)
	sort.Strings(sortedExclude)
	key, err := json.Marshal([]any{o.plugins.ActiveNames(), sortedExclude, agent})
	if err != nil {
		// Only reachable if string slices stop being marshalable.
		panic(err)
	}
	return string(key)
}

func agentAllowed(meta ToolMetadata, agent string) bool {
	if len(meta.AllowedAgents) == 0 {
		return true
	}
	for _, allowed := range meta.AllowedAgents {
		if allowed == agent {
			return true
		}
	}
	return false
}

// buildDefinition converts tool metadata into an OpenAI-style function
// definition. A standard description property is injected unless the tool
// already declares one, and made required except for delegation tools.
func buildDefinition(meta ToolMetadata) openai.Tool {
	properties := make(map[string]jsonschema.Definition, len(meta.Parameters)+1)
	var required []string
	hasDescription := false

	for _, p := range meta.Parameters {
		properties[p.Name] = jsonschema.Definition{
			Type:        schemaType(p.ParamType),
			Description: p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
		if p.Name == descriptionParam {
			hasDescription = true
		}
	}

	if !hasDescription {
		properties[descriptionParam] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: descriptionParamDoc,
		}
		if !meta.Delegation {
			required = append(required, descriptionParam)
		}
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: properties,
				Required:   required,
			},
		},
	}
}

func schemaType(paramType string) jsonschema.DataType {
	switch paramType {
	case "number", "float":
		return jsonschema.Number
	case "integer", "int":
		return jsonschema.Integer
	case "boolean", "bool":
		return jsonschema.Boolean
	case "array":
		return jsonschema.Array
	case "object":
		return jsonschema.Object
	default:
		return jsonschema.String
	}
}

func newDefinitionCache() *lru.Cache[string, []openai.Tool] {
	cache, err := lru.New[string, []openai.Tool](definitionCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return cache
}

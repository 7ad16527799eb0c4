package config

// mergeTemplates merges built-in and user-defined workflow templates.
// User-defined templates override built-in templates with the same name.
// The map key becomes the template name.
func mergeTemplates(builtinTemplates map[string]WorkflowTemplate, userTemplates map[string]WorkflowTemplate) map[string]*WorkflowTemplate {
	result := make(map[string]*WorkflowTemplate)

	// First, add built-in templates
	for name, tmpl := range builtinTemplates {
		tmplCopy := tmpl
		tmplCopy.Name = name
		result[name] = &tmplCopy
	}

	// Then, override with user-defined templates (or add new ones)
	for name, userTmpl := range userTemplates {
		tmplCopy := userTmpl
		tmplCopy.Name = name
		result[name] = &tmplCopy
	}

	return result
}

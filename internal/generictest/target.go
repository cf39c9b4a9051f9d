package generictest

import "fmt"

// TargetRef identifies what a generic test is attached to. The interface is
// sealed: the only implementations are ModelTarget, NodeTarget, and
// SourceTarget, so every dispatch site can enumerate the variants and treat
// anything else as a programmer error.
type TargetRef interface {
	// TargetName is the name used in diagnostics and name synthesis.
	TargetName() string

	sealedTarget()
}

// ModelTarget attaches a test to a model, optionally pinned to a version.
type ModelTarget struct {
	Name    string
	Version string
}

func (ModelTarget) sealedTarget() {}

func (t ModelTarget) TargetName() string { return t.Name }

// NodeTarget attaches a test to a generic node resolved like a model.
type NodeTarget struct {
	Name string
}

func (NodeTarget) sealedTarget() {}

func (t NodeTarget) TargetName() string { return t.Name }

// SourceTarget attaches a test to a table of an external source.
type SourceTarget struct {
	SourceName string
	TableName  string
}

func (SourceTarget) sealedTarget() {}

func (t SourceTarget) TargetName() string { return t.TableName }

// modelArg builds the template reference string injected as the implicit
// "model" argument of every generic test.
func modelArg(target TargetRef) (string, error) {
	var ref string
	switch t := target.(type) {
	case ModelTarget:
		if t.Version != "" {
			ref = fmt.Sprintf("ref('%s', version='%s')", t.Name, t.Version)
		} else {
			ref = fmt.Sprintf("ref('%s')", t.Name)
		}
	case NodeTarget:
		ref = fmt.Sprintf("ref('%s')", t.Name)
	case SourceTarget:
		ref = fmt.Sprintf("source('%s', '%s')", t.SourceName, t.TableName)
	default:
		return "", &UnsupportedTargetKindError{Target: target}
	}
	return fmt.Sprintf("{{ get_where_subquery(%s) }}", ref), nil
}

// synthesisInputs derives the (type label, target name) pair fed into name
// synthesis for the given target. Source tests carry a "source_" prefix,
// versioned models a "_v{version}" suffix, and a namespaced test token
// prefixes the type label with its namespace.
func synthesisInputs(target TargetRef, testName, namespace string) (typeLabel, targetName string, err error) {
	switch t := target.(type) {
	case ModelTarget:
		typeLabel = testName
		targetName = t.Name
		if t.Version != "" {
			targetName = fmt.Sprintf("%s_v%s", t.Name, t.Version)
		}
	case NodeTarget:
		typeLabel = testName
		targetName = t.Name
	case SourceTarget:
		typeLabel = "source_" + testName
		targetName = t.TableName
	default:
		return "", "", &UnsupportedTargetKindError{Target: target}
	}
	if namespace != "" {
		typeLabel = fmt.Sprintf("%s_%s", namespace, typeLabel)
	}
	return typeLabel, targetName, nil
}

// Package config loads declarative agent definitions from YAML and builds
// runnable agent trees from them.
//
// A configuration file describes one agent. The agent_class field selects
// the concrete type (LlmAgent when omitted); sub_agents nests children
// inline or references other files via config_path:
//
//	agent_class: SequentialAgent
//	name: CodePipeline
//	description: Writes, reviews and refactors code.
//	sub_agents:
//	  - name: Writer
//	    model: ${WRITER_MODEL:-gpt-4o-mini}
//	    instruction: You write clean code.
//	    output_key: draft
//	  - config_path: reviewer.yaml
//	  - agent_class: LoopAgent
//	    name: Refactorer
//	    max_iterations: 3
//	    sub_agents:
//	      - name: Fixer
//	        model: gpt-4o-mini
//	        instruction: Improve the code in {draft}.
//
// Loading is a fixed pipeline: parse YAML, expand ${VAR} / ${VAR:-default}
// environment references, decode with weak typing (so "3" and 3 both work),
// resolve config_path references, apply defaults and validate. Every
// structural problem fails the load with the offending agent named; nothing
// is deferred to run time.
//
// Building resolves names against registered resources:
//
//	cfg, err := config.LoadFile("pipeline.yaml")
//	if err != nil {
//	    return err
//	}
//
//	b := config.NewBuilder(func(o *config.BuilderOptions) {
//	    o.Models = map[string]core.Model{"gpt-4o-mini": oaiModel}
//	    o.Tools = map[string]core.Tool{"search": searchTool}
//	})
//
//	root, err := b.Build(cfg)
//	if err != nil {
//	    return err
//	}
//
// Model names inherit downward: an LlmAgent without a model uses the
// nearest ancestor's, passing through composite agents unchanged. Custom
// agent classes register with RegisterAgentClass and receive their
// unmatched YAML keys through AgentConfig.Extra.
package config

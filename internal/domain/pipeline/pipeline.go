package pipeline

// Pipeline is a declarative, multi-stage workflow definition belonging to an
// application. It is treated as an immutable snapshot while being validated.
type Pipeline struct {
	ID          string
	Name        string
	Application string
	Disabled    bool
	Stages      []Stage

	// LimitConcurrent restricts how many executions of this pipeline may run
	// at once. MaxConcurrentExecutions of zero defers to the gate default.
	LimitConcurrent         bool
	MaxConcurrentExecutions int
}

// Stage is one node of the pipeline's stage graph.
type Stage struct {
	RefID                string
	Name                 string
	Type                 string
	RequisiteStageRefIDs []string
	Context              map[string]interface{}
}

// Validate ensures the pipeline identity is fully materialised.
func (p Pipeline) Validate() error {
	if p.ID == "" {
		return newMissingFieldError("id")
	}
	if p.Name == "" {
		return newMissingFieldError("name").WithContext(map[string]interface{}{"pipeline_id": p.ID})
	}
	if p.Application == "" {
		return newMissingFieldError("application").WithContext(map[string]interface{}{"pipeline_id": p.ID})
	}
	if p.MaxConcurrentExecutions < 0 {
		return newValidationError("max concurrent executions must be non-negative", map[string]interface{}{
			"pipeline_id": p.ID,
		})
	}
	return nil
}

// ValidateStageGraph checks that stage references resolve and form a DAG.
func (p Pipeline) ValidateStageGraph() error {
	lookup := make(map[string]Stage, len(p.Stages))
	for i, stage := range p.Stages {
		if stage.RefID == "" {
			return newMissingFieldError("stages.ref_id").WithContext(map[string]interface{}{"stage_index": i})
		}
		if stage.Type == "" {
			return newMissingFieldError("stages.type").WithContext(map[string]interface{}{"ref_id": stage.RefID})
		}
		if _, ok := lookup[stage.RefID]; ok {
			return newDuplicateError(stage.RefID)
		}
		lookup[stage.RefID] = stage
	}

	for _, stage := range p.Stages {
		for _, req := range stage.RequisiteStageRefIDs {
			if req == stage.RefID {
				return newDependencyError("stage cannot require itself", map[string]interface{}{"ref_id": stage.RefID})
			}
			if _, ok := lookup[req]; !ok {
				return newDependencyError("requisite stage not found", map[string]interface{}{
					"ref_id":            stage.RefID,
					"missing_requisite": req,
				})
			}
		}
	}

	visited := make(map[string]bool, len(p.Stages))
	onPath := make(map[string]bool, len(p.Stages))
	var path []string
	var detect func(string) *DomainError
	detect = func(id string) *DomainError {
		visited[id] = true
		onPath[id] = true
		path = append(path, id)

		for _, req := range lookup[id].RequisiteStageRefIDs {
			if !visited[req] {
				if err := detect(req); err != nil {
					return err
				}
			} else if onPath[req] {
				cycle := append([]string(nil), path...)
				return newCycleError(append(cycle, req))
			}
		}

		onPath[id] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, stage := range p.Stages {
		if !visited[stage.RefID] {
			if err := detect(stage.RefID); err != nil {
				return err
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	out := p
	if p.Stages != nil {
		out.Stages = make([]Stage, len(p.Stages))
		for i, stage := range p.Stages {
			out.Stages[i] = stage.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the stage.
func (s Stage) Clone() Stage {
	out := s
	if s.RequisiteStageRefIDs != nil {
		out.RequisiteStageRefIDs = append([]string(nil), s.RequisiteStageRefIDs...)
	}
	if s.Context != nil {
		out.Context = make(map[string]interface{}, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
	}
	return out
}

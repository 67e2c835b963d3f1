package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency rollop relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of required dependencies that are unavailable.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			missing = append(missing, st.Command)
		}
	}
	return missing
}

// BasicRequirements lists the tools every command needs.
func BasicRequirements() []Requirement {
	return []Requirement{
		{Name: "git", Command: "git", Description: "clones the optimism and op-geth repositories"},
		{Name: "make", Command: "make", Description: "builds monorepo targets and op-geth"},
		{Name: "go", Command: "go", Description: "generates genesis files and builds op-geth"},
		{Name: "curl", Command: "curl", Description: "downloads geth and the foundry installer"},
		{Name: "tar", Command: "tar", Description: "unpacks the geth release archive"},
		{Name: "jq", Command: "jq", Description: "inspects generated json artifacts", Optional: true},
		{Name: "pnpm", Command: "pnpm", Description: "builds contracts-bedrock packages", Optional: true},
	}
}

// FoundryRequirements lists the binaries the foundry installer provides.
func FoundryRequirements() []Requirement {
	return []Requirement{
		{Name: "forge", Command: "forge", Description: "compiles and deploys contracts"},
		{Name: "cast", Command: "cast", Description: "sends transactions from scripts"},
		{Name: "anvil", Command: "anvil", Description: "local test chain used by contract scripts"},
	}
}

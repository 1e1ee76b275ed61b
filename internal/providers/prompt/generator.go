package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/SyncraLabs/aura/internal/domain"
)

// Generator turns a (service, sector) pair into an edit instruction using a
// text-generation model.
type Generator interface {
	Generate(ctx context.Context, service string, sector domain.Sector) (string, error)
}

// Example is a worked service-to-instruction mapping shown to the model.
type Example struct {
	Service     string
	Sector      domain.Sector
	Instruction string
}

// Examples are sent with every live request.
var Examples = []Example{
	{Service: "Color: Blue", Sector: domain.SectorHair, Instruction: "Dye the hair blue"},
	{Service: "Veneers", Sector: domain.SectorDental, Instruction: "Make the teeth into perfect white veneers"},
	{Service: "Rhinoplasty", Sector: domain.SectorOther, Instruction: "Make the nose smaller and straighter"},
	{Service: "Fade", Sector: domain.SectorHair, Instruction: "Give the person a fade haircut"},
}

// SystemInstruction frames the model as an image-edit prompt writer.
const SystemInstruction = `You are an expert AI image prompting assistant. Convert the beauty service request for a specific clinic sector into a precise, imperative image editing instruction for an AI model.
Focus ONLY on the relevant body part. Do not describe the person, only the change.
Reply with a single sentence.
IMPORTANT: If the service is ambiguous like 'Fade' or 'Flash', interpret it as a BEAUTY PROCEDURE, not a photography style.`

// BuildInput renders the examples and the requested pair.
func BuildInput(service string, sector domain.Sector) string {
	if sector == "" {
		sector = domain.SectorGeneral
	}
	sb := &strings.Builder{}
	sb.WriteString("Examples:\n")
	for _, ex := range Examples {
		fmt.Fprintf(sb, "- Service: '%s', Sector: '%s' -> '%s'\n", ex.Service, ex.Sector, ex.Instruction)
	}
	fmt.Fprintf(sb, "\nInput: Service: '%s', Sector: '%s'\nOutput (Instruction only):", service, sector)
	return sb.String()
}

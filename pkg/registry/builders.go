package registry

import (
	"maps"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/steps"
)

const (
	adm = models.CoordAdministrativo
	ass = models.CoordAssessoria
	obr = models.CoordObras
)

const defaultApprovalSLADays = 2

func step(order int, short, label string, responsible models.ResponsibleRole, fields []steps.Field, rules ...steps.Rule) *Definition {
	return &Definition{
		Step:  steps.MustNew(label, responsible, fields, rules...),
		Order: order,
		Short: short,
	}
}

func fields(f ...steps.Field) []steps.Field {
	return f
}

func (d *Definition) checkpoint(kind models.ApprovalKind, slaDays int) *Definition {
	d.Checkpoint = &Checkpoint{Kind: kind}
	d.SLADays = slaDays

	return d
}

func (d *Definition) document(templateKind string) *Definition {
	d.Document = templateKind

	return d
}

func (d *Definition) spawns(osType models.OSType, seed SeedFunc) *Definition {
	d.Spawn = &SpawnRule{OSType: osType, Seed: seed}

	return d
}

func (d *Definition) optionalWhen(condition Condition) *Definition {
	d.Optional = true
	d.Unlock = condition

	return d
}

func (d *Definition) unlockWhen(condition Condition) *Definition {
	d.Unlock = condition

	return d
}

// baseSeed links a dependent order to its parent and client.
func baseSeed(parent *models.Order) map[string]any {
	return map[string]any{
		"clienteId":  parent.ClientRef,
		"origemOS":   string(parent.OSType),
		"origemId":   parent.ID,
		"origemCode": parent.Code,
	}
}

// seedFrom copies selected fields of a completed parent step into the seed.
func seedFrom(stepOrder int, names ...string) SeedFunc {
	return func(parent *models.Order) (map[string]any, error) {
		seed := baseSeed(parent)

		record := parent.Step(stepOrder)
		if record == nil {
			return seed, nil
		}

		for _, name := range names {
			if value, ok := record.Data[name]; ok {
				seed[name] = value
			}
		}

		return seed, nil
	}
}

func mergeSeeds(seeds ...SeedFunc) SeedFunc {
	return func(parent *models.Order) (map[string]any, error) {
		merged := make(map[string]any)

		for _, seed := range seeds {
			values, err := seed(parent)
			if err != nil {
				return nil, err
			}

			maps.Copy(merged, values)
		}

		return merged, nil
	}
}

package registry

import (
	"log/slog"

	"github.com/minerva-erp/osflow/pkg/models"
)

// NewDefaultRegistry registers the built-in flow of every OS type.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	reg := NewRegistry(log)

	for _, osType := range []models.OSType{models.OS01, models.OS02, models.OS03, models.OS04} {
		reg.MustRegister(osType, obrasCommercialFlow())
	}

	reg.MustRegister(models.OS05, assessoriaLeadFlow(models.OS12, models.OS05, models.OS06))
	reg.MustRegister(models.OS06, assessoriaLeadFlow(models.OS11, models.OS05, models.OS06))
	reg.MustRegister(models.OS07, reformRequestFlow())
	reg.MustRegister(models.OS08, technicalVisitFlow())
	reg.MustRegister(models.OS09, purchaseRequisitionFlow())
	reg.MustRegister(models.OS10, labourRequisitionFlow())
	reg.MustRegister(models.OS11, laudoExecutionFlow())
	reg.MustRegister(models.OS12, recurringAssessoriaFlow())
	reg.MustRegister(models.OS13, worksContractFlow())

	return reg
}

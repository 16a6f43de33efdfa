package registry

import (
	"fmt"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/recurrence"
	"github.com/minerva-erp/osflow/pkg/steps"
)

// scheduledVisits is how many recurring visits are seeded into the follow-up visit order.
const scheduledVisits = 6

// assessoriaLeadFlow is shared by OS-05 and OS-06; the activated contract
// spawns the execution order the lead was converted for.
func assessoriaLeadFlow(execution models.OSType, allowed ...models.OSType) []*Definition {
	tipos := make([]string, len(allowed))
	for i, t := range allowed {
		tipos[i] = string(t)
	}

	return []*Definition{
		step(1, "Lead", "Identificação do Lead", adm, fields(
			steps.Ref("leadId"),
			steps.Text("nome", 3),
		)),
		step(2, "Tipo", "Seleção do Tipo de OS", adm, fields(
			steps.Enum("tipoOS", tipos...),
		)),
		step(3, "Follow-up 1", "Follow-up 1 (Entrevista Inicial)", adm, fields(
			steps.Date("dataEntrevista"),
			steps.Text("interessePrincipal", 3),
		)),
		step(4, "Escopo", "Escopo da Assessoria", adm, fields(
			steps.Text("descricaoEscopo", 20),
		)),
		step(5, "Precificação", "Precificação", adm, fields(
			steps.Number("precoFinal", 0.01),
		)),
		step(6, "Proposta", "Gerar Proposta Comercial", adm, fields(
			steps.Text("descricaoServicos", 20),
			steps.Number("valorProposta", 0.01),
			steps.Number("prazoProposta", 1),
		)).checkpoint(models.ApprovalKindProposta, defaultApprovalSLADays).document("proposta_comercial"),
		step(7, "Agendar Apresentação", "Agendar Visita (Apresentação)", adm, fields(
			steps.Date("dataApresentacao"),
			steps.Clock("horaApresentacao"),
		)),
		step(8, "Apresentação", "Realizar Visita (Apresentação)", adm, fields(
			steps.Date("dataApresentacaoRealizada"),
			steps.Text("reacaoCliente", 3),
		)),
		step(9, "Follow-up 3", "Follow-up 3 (Pós-Apresentação)", adm, fields(
			steps.Date("dataFollowup3"),
			steps.Text("statusNegociacao", 3),
		)),
		step(10, "Contrato", "Gerar Contrato (Upload)", adm, fields(
			steps.Text("descricaoContrato", 20),
			steps.Date("dataInicio"),
			steps.Date("dataFim"),
		), steps.NotBefore("dataInicio", "dataFim")).document("contrato"),
		step(11, "Assinatura", "Contrato Assinado", adm, fields(
			steps.Date("dataAssinatura"),
			steps.Text("assinadoPor", 3),
		)),
		step(12, "Ativação", "Ativar Contrato", adm, fields(
			steps.Checked("contratoAtivo"),
			steps.Date("dataAtivacao"),
		)).spawns(execution, mergeSeeds(
			seedFrom(4, "descricaoEscopo"),
			seedFrom(10, "dataInicio", "dataFim"),
		)),
	}
}

// reformRequestFlow is OS-07. Once the opinion is delivered a technical visit
// (OS-08) follows up on the reform.
func reformRequestFlow() []*Definition {
	return []*Definition{
		step(1, "Solicitante", "Identificação do Solicitante", ass, fields(
			steps.Text("nome", 3),
			steps.Text("unidade", 1).Optional(),
		)),
		step(2, "Dados", "Coletar Dados da Reforma", ass, fields(
			steps.Text("linkFormulario", 5),
		)),
		step(3, "Análise", "Análise e Parecer", ass, fields(
			steps.Checked("formularioRecebido"),
			steps.Text("parecer", 10),
		)).checkpoint(models.ApprovalKindReforma, 3),
		step(4, "PDF", "Gerar PDF do Parecer", ass, fields(
			steps.Checked("revisado"),
		)).document("parecer_reforma"),
		step(5, "Concluída", "Concluída", ass, fields(
			steps.Checked("concluida"),
		)).spawns(models.OS08, mergeSeeds(
			seedFrom(1, "nome", "unidade"),
			seedFrom(3, "parecer"),
		)),
	}
}

// technicalVisitFlow is OS-08.
func technicalVisitFlow() []*Definition {
	documentKinds := []string{"parecer_tecnico", "laudo", "vistoria"}

	return []*Definition{
		step(1, "Solicitante", "Identificação do Solicitante", adm, fields(
			steps.Text("nomeCompleto", 3),
			steps.Text("contatoWhatsApp", 8),
			steps.Enum("tipoDocumento", documentKinds...),
		)),
		step(2, "Cliente", "Atribuir Cliente", adm, fields(
			steps.Ref("clienteId"),
		)),
		step(3, "Agendar", "Agendar Visita", ass, nil,
			steps.RequireAny("agendamentoId", "dataAgendamento")),
		step(4, "Visita", "Realizar Visita", ass, fields(
			steps.Checked("visitaRealizada"),
			steps.Date("dataRealizacao"),
		)),
		step(5, "Pós-Visita", "Formulário Pós-Visita", ass, fields(
			steps.Text("resultadoVisita", 10),
			steps.Enum("tipoDocumento", documentKinds...),
		)),
		step(6, "Documento", "Gerar Documento", ass, fields(
			steps.Text("conclusaoTecnica", 20),
		)).checkpoint(models.ApprovalKindLaudo, 3).document("parecer_tecnico"),
		step(7, "Envio", "Enviar ao Cliente", ass, fields(
			steps.Checked("documentoEnviado"),
			steps.Date("dataEnvio"),
		)),
	}
}

// laudoExecutionFlow is OS-11.
func laudoExecutionFlow() []*Definition {
	return []*Definition{
		step(1, "Cliente", "Cadastrar Cliente", adm, fields(
			steps.Ref("clienteId"),
		)),
		step(2, "Agendar", "Agendar Visita", adm, fields(
			steps.Date("dataVisita"),
			steps.Ref("tecnicoResponsavel"),
		)),
		step(3, "Visita", "Realizar Visita", ass, fields(
			steps.Checked("visitaRealizada"),
			steps.Attachments("fotos", 1),
		)),
		step(4, "RT", "Anexar RT", ass, fields(
			steps.Attachments("arquivoRT", 1),
			steps.Text("numeroRT", 3),
		)),
		step(5, "Questionário", "Questionário Pós-Visita", ass, fields(
			steps.Text("diagnostico", 10),
		)),
		step(6, "Documento", "Gerar Documento", ass, fields(
			steps.Text("conclusaoTecnica", 20),
		)).checkpoint(models.ApprovalKindLaudo, 3).document("laudo_tecnico"),
		step(7, "Envio", "Enviar ao Cliente", ass, fields(
			steps.Checked("documentoEnviado"),
			steps.Date("dataEnvio"),
		)),
	}
}

// recurringAssessoriaFlow is OS-12. Recurring visits can only be configured once
// both the maintenance plan and the first visit are done, and the activated
// contract seeds a visit order with the computed schedule.
func recurringAssessoriaFlow() []*Definition {
	return []*Definition{
		step(1, "Cliente", "Cadastro do Cliente e Portal", adm, fields(
			steps.Ref("clienteId"),
			steps.Text("senhaPortal", 8),
		)),
		step(2, "ART", "Upload de ART", ass, fields(
			steps.Attachments("arquivos", 1),
		)),
		step(3, "Plano", "Upload de Plano de Manutenção", ass, fields(
			steps.Attachments("arquivos", 1),
		)),
		step(4, "Agendar", "Agendar Visita", adm, fields(
			steps.Date("dataVisita"),
			steps.Clock("horaVisita"),
		)),
		step(5, "Visita", "Realizar Visita", adm, fields(
			steps.Checked("visitaRealizada"),
		)),
		step(6, "Recorrência", "Agendar Visita Recorrente", adm, fields(
			steps.Text("frequencia", 1),
			steps.Date("proximaVisita"),
			steps.List("diasSemana", 0).Optional(),
		), validFrequency).unlockWhen(After(3, 5)),
		step(7, "Visita Recorrente", "Realizar Visita Recorrente", ass, nil,
			steps.RequireAny("visitaAtualRealizada", "historicoVisitas")),
		step(8, "Ativação", "Concluir e Ativar Contrato", ass, fields(
			steps.Checked("confirmacaoTermos"),
			steps.Checked("contratoAtivo"),
		), steps.RequireBefore("confirmacaoTermos", "contratoAtivo")).
			document("contrato_assessoria").
			spawns(models.OS08, mergeSeeds(seedFrom(1, "clienteId"), visitScheduleSeed)),
	}
}

func validFrequency(data map[string]any, result *steps.ValidationResult) {
	frequency, ok := data["frequencia"].(string)
	if !ok || frequency == "" {
		return
	}

	if err := recurrence.Validate(frequency, stringList(data["diasSemana"])); err != nil {
		result.Add("frequencia", err.Error())
	}
}

func visitScheduleSeed(parent *models.Order) (map[string]any, error) {
	record := parent.Step(6)
	if record == nil {
		return nil, fmt.Errorf("recurring visit settings missing on order %s", parent.ID)
	}

	frequency, _ := record.Data["frequencia"].(string)
	first, _ := record.Data["proximaVisita"].(string)

	plan, err := recurrence.Parse(frequency, first, stringList(record.Data["diasSemana"]))
	if err != nil {
		return nil, fmt.Errorf("failed to compute visit schedule for order %s: %w", parent.ID, err)
	}

	return map[string]any{
		"frequencia":         frequency,
		"visitasProgramadas": plan.NextDates(scheduledVisits),
	}, nil
}

func stringList(value any) []string {
	entries, ok := value.([]any)
	if !ok {
		if list, ok := value.([]string); ok {
			return list
		}

		return nil
	}

	list := make([]string, 0, len(entries))

	for _, entry := range entries {
		if s, ok := entry.(string); ok {
			list = append(list, s)
		}
	}

	return list
}

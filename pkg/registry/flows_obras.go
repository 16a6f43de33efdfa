package registry

import (
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/steps"
)

// obrasCommercialFlow is shared by OS-01 to OS-04: lead intake, technical
// visit, proposal, contract, and hand-over to a works contract (OS-13).
func obrasCommercialFlow() []*Definition {
	return []*Definition{
		step(1, "Lead", "Identificação do Cliente/Lead", adm, fields(
			steps.Ref("leadId"),
			steps.Text("nome", 3),
		)),
		step(2, "Tipo", "Seleção do Tipo de OS", adm, fields(
			steps.Enum("tipoOS", string(models.OS01), string(models.OS02), string(models.OS03), string(models.OS04)),
		)),
		step(3, "Follow-up 1", "Follow-up 1 (Entrevista Inicial)", adm, fields(
			steps.Date("dataEntrevista"),
			steps.Text("interessePrincipal", 3),
		)),
		step(4, "Agendar Visita", "Agendar Visita Técnica", adm, fields(
			steps.Date("dataVisita"),
			steps.Clock("horaVisita"),
			steps.Ref("responsavelVisita"),
		)),
		step(5, "Visita", "Realizar Visita", obr, fields(
			steps.Date("dataVisitaRealizada"),
			steps.Text("observacoesVisita", 10),
			steps.Attachments("fotos", 1),
		)),
		step(6, "Follow-up 2", "Follow-up 2 (Pós-Visita)", obr, fields(
			steps.Date("dataFollowup"),
			steps.Text("feedback", 3),
		)),
		step(7, "Memorial", "Memorial (Escopo e Prazos)", obr, fields(
			steps.Number("idadeEdificacao", 0),
			steps.Text("tipoEdificacao", 3),
			steps.Text("descricaoEscopo", 20),
		)),
		step(8, "Precificação", "Precificação", obr, fields(
			steps.Number("materialCusto", 0),
			steps.Number("maoObraCusto", 0),
			steps.Number("precoFinal", 0.01),
		)),
		step(9, "Proposta", "Gerar Proposta Comercial", adm, fields(
			steps.Text("descricaoServicos", 20),
			steps.Number("valorProposta", 0.01),
			steps.Number("prazoProposta", 1),
		)).checkpoint(models.ApprovalKindProposta, defaultApprovalSLADays).document("proposta_comercial"),
		step(10, "Agendar Apresentação", "Agendar Visita (Apresentação)", adm, fields(
			steps.Date("dataApresentacao"),
			steps.Clock("horaApresentacao"),
		)),
		step(11, "Apresentação", "Realizar Visita (Apresentação)", adm, fields(
			steps.Date("dataApresentacaoRealizada"),
			steps.Text("reacaoCliente", 3),
		)),
		step(12, "Follow-up 3", "Follow-up 3 (Pós-Apresentação)", adm, fields(
			steps.Date("dataFollowup3"),
			steps.Text("statusNegociacao", 3),
		)),
		step(13, "Contrato", "Gerar Contrato (Upload)", adm, fields(
			steps.Text("descricaoContrato", 20),
			steps.Date("dataInicio"),
			steps.Date("dataFim"),
		), steps.NotBefore("dataInicio", "dataFim")).document("contrato"),
		step(14, "Assinatura", "Contrato Assinado", adm, fields(
			steps.Date("dataAssinatura"),
			steps.Text("assinadoPor", 3),
		)),
		step(15, "Início", "Iniciar Contrato de Obra", adm, fields(
			steps.Date("dataInicio"),
			steps.Ref("responsavelObra"),
		)).spawns(models.OS13, mergeSeeds(
			seedFrom(13, "descricaoContrato", "dataFim"),
			seedFrom(15, "dataInicio", "responsavelObra"),
			seedFrom(8, "precoFinal"),
		)),
	}
}

// purchaseRequisitionFlow is OS-09.
func purchaseRequisitionFlow() []*Definition {
	return []*Definition{
		step(1, "Requisição", "Requisição de Compra", obr, fields(
			steps.List("itens", 1),
			steps.Ref("centroCusto"),
		)),
		step(2, "Orçamentos", "Upload de Orçamentos", adm, fields(
			steps.Attachments("orcamentos", 3),
		)),
		step(3, "Aprovação", "Aprovação da Compra", adm, fields(
			steps.Ref("fornecedorEscolhido"),
			steps.Number("valorTotal", 0.01),
		)).checkpoint(models.ApprovalKindRequisicaoCompra, defaultApprovalSLADays),
	}
}

// labourRequisitionFlow is OS-10. The multiple-requisition step only applies
// when more than one vacancy was requested.
func labourRequisitionFlow() []*Definition {
	return []*Definition{
		step(1, "Abertura", "Abertura da Requisição", adm, fields(
			steps.Text("cargo", 3),
			steps.Date("dataNecessidade"),
		)),
		step(2, "Centro de Custo", "Centro de Custo", adm, fields(
			steps.Ref("centroCusto"),
		)),
		step(3, "Colaborador", "Seleção do Colaborador", adm, fields(
			steps.Enum("tipoContratacao", "clt", "pj", "temporario"),
			steps.Text("perfilColaborador", 3),
		)),
		step(4, "Vaga", "Detalhes da Vaga", adm, fields(
			steps.Number("quantidadeVagas", 1),
			steps.Text("descricaoAtividades", 10),
		)),
		step(5, "Múltipla", "Requisição Múltipla", adm, fields(
			steps.List("vagas", 2),
		)).optionalWhen(WhenAbove(4, "quantidadeVagas", 1)),
	}
}

// worksContractFlow is OS-13. Purchase and labour requisitions are optional and
// spawn OS-09 and OS-10 when the schedule asks for them.
func worksContractFlow() []*Definition {
	return []*Definition{
		step(1, "Cliente", "Dados do Cliente", adm, fields(
			steps.Ref("clienteId"),
			steps.Text("enderecoObra", 5),
		)),
		step(2, "ART", "Anexar ART", obr, fields(
			steps.Attachments("arquivos", 1),
		)),
		step(3, "Fotos", "Relatório Fotográfico", adm, fields(
			steps.Attachments("fotos", 1),
		)),
		step(4, "Áreas", "Imagem de Áreas", adm, fields(
			steps.Attachments("imagens", 1),
		)),
		step(5, "Cronograma", "Cronograma", obr, fields(
			steps.Date("dataInicioPrevista"),
			steps.Date("dataFimPrevista"),
			steps.Attachments("cronograma", 1),
			steps.Flag("requerCompras"),
			steps.Flag("requerMaoDeObra"),
		), steps.NotBefore("dataInicioPrevista", "dataFimPrevista")),
		step(6, "Agendar Inicial", "Agendar Visita Inicial", obr, fields(
			steps.Date("dataVisita"),
			steps.Clock("horaVisita"),
		)),
		step(7, "Visita Inicial", "Realizar Visita Inicial", obr, fields(
			steps.Checked("visitaRealizada"),
			steps.Date("dataRealizacao"),
		)),
		step(8, "Histograma", "Histograma", obr, fields(
			steps.Attachments("histograma", 1),
		)),
		step(9, "Placa", "Placa de Obra", obr, fields(
			steps.Checked("placaInstalada"),
			steps.Attachments("fotos", 1),
		)),
		step(10, "Compras", "Requisição de Compras", obr, fields(
			steps.List("itens", 1),
			steps.Ref("centroCusto"),
		)).optionalWhen(WhenTrue(5, "requerCompras")).spawns(models.OS09, seedFrom(10, "itens", "centroCusto")),
		step(11, "Mão de Obra", "Requisição de Mão de Obra", adm, fields(
			steps.Number("quantidadeVagas", 1),
			steps.Text("funcao", 3),
		)).optionalWhen(WhenTrue(5, "requerMaoDeObra")).spawns(models.OS10, seedFrom(11, "quantidadeVagas", "funcao")),
		step(12, "Mobilização", "Evidência de Mobilização", obr, fields(
			steps.Attachments("evidencias", 1),
		)),
		step(13, "Diário", "Diário de Obra", adm, fields(
			steps.Attachments("registros", 1),
			steps.Number("percentualExecutado", 0),
		)).checkpoint(models.ApprovalKindMedicao, defaultApprovalSLADays),
		step(14, "Seguro", "Seguro de Obras", obr, fields(
			steps.Enum("decisaoSeguro", "contratar", "dispensar"),
		)),
		step(15, "SST", "Documentos SST", obr, fields(
			steps.Attachments("arquivos", 1),
		)),
		step(16, "Agendar Final", "Agendar Visita Final", obr, fields(
			steps.Date("dataVisita"),
			steps.Clock("horaVisita"),
		)),
		step(17, "Visita Final", "Realizar Visita Final", obr, fields(
			steps.Checked("visitaRealizada"),
			steps.Text("parecerFinal", 10),
		)).document("termo_entrega"),
	}
}

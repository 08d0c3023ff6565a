// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// TEXT FOLDING
// ============================================================================

// Text is a message folded for matching: lower-case, no diacritics, every run
// of punctuation or whitespace collapsed to one space, padded with a leading
// and trailing space.
type Text string

// Fold prepares s for term matching. "Rescisão do CONTRATO!" becomes
// " rescisao do contrato ".
func Fold(s string) Text {
	// A transform.Chain keeps state, so one is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' || r == '%' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return Text(b.String())
}

// ============================================================================
// TERM SETS
// ============================================================================

// TermSet is an immutable list of folded terms. A term matches whole words
// only, so "custo" does not match "customizar" and "seo" does not match
// "museo". A term ending in "*" is a stem and matches at the start of a
// word: "inadimpl*" covers "inadimplente" and "inadimplencia".
type TermSet struct {
	terms []string
}

// NewTermSet folds every term once.
func NewTermSet(terms ...string) TermSet {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		stem := strings.HasSuffix(term, "*")
		f := string(Fold(strings.TrimSuffix(term, "*")))
		if strings.TrimSpace(f) == "" {
			continue
		}
		if stem {
			f = strings.TrimRight(f, " ")
		}
		out = append(out, f)
	}
	return TermSet{terms: out}
}

// Match reports whether any term occurs in t.
func (s TermSet) Match(t Text) bool {
	_, ok := s.First(t)
	return ok
}

// First returns the first term of the set found in t.
func (s TermSet) First(t Text) (string, bool) {
	for _, term := range s.terms {
		if strings.Contains(string(t), term) {
			return strings.TrimSpace(term), true
		}
	}
	return "", false
}

// Len returns the number of terms.
func (s TermSet) Len() int { return len(s.terms) }

// Qualifier maps a term set to a structured-query parameter value.
type Qualifier struct {
	Value string
	Terms TermSet
}

// pick returns the value of the first qualifier matching t.
func pick(qs []Qualifier, t Text) (string, bool) {
	for _, q := range qs {
		if q.Terms.Match(t) {
			return q.Value, true
		}
	}
	return "", false
}

// ============================================================================
// LEXICON
// ============================================================================

// Lexicon holds every curated term list the router matches against. It is
// built once by DefaultLexicon and shared read-only between requests.
type Lexicon struct {
	// Category terms, one set per rule.
	Contract     TermSet
	Monetary     TermSet
	Sensitive    TermSet
	Conversation TermSet
	Ops          TermSet
	Proposal     TermSet
	Survey       TermSet
	Project      TermSet
	Client       TermSet
	Users        TermSet
	Governance   TermSet

	// Listing separates "list all / how many" from semantic questions.
	Listing TermSet

	// Task kind terms, checked in this order.
	Summarization TermSet
	Drafting      TermSet
	Analysis      TermSet
	Operation     TermSet

	// Structured-query qualifiers.
	ProjectStatus  []Qualifier
	ProposalStatus []Qualifier
	ClientStatus   []Qualifier
	Services       []Qualifier
	Roles          []Qualifier
}

// DefaultLexicon returns the Portuguese/English term lists used in production.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Contract: NewTermSet(
			"contrato", "contratos", "contract", "contracts", "rescisão", "rescindir", "distrato",
			"cláusula", "cláusulas", "aditivo", "aditivos", "multa contratual", "multa rescisória",
			"vigência", "renovação contratual",
			"jurídico", "juridico", "notificação extrajudicial", "termo de compromisso",
		),
		Monetary: NewTermSet(
			"valor", "valores", "pagamento", "pagamentos", "pagar", "preço", "preços", "price",
			"prices", "faturamento", "fatura", "faturas", "invoice", "invoices", "receita",
			"receitas", "orçamento", "orçamentos", "custo", "custos", "mrr", "r$*", "boleto",
			"boletos", "cobrança", "cobranças", "reembolso", "desconto", "descontos", "inadimpl*",
			"ticket médio", "margem", "lucro", "financeiro", "financeira",
		),
		Sensitive: NewTermSet(
			"senha", "senhas", "password", "passwords", "credencial", "credenciais", "credential",
			"credentials", "token", "tokens", "api key", "chave de api", "cpf", "cnpj", "rg",
			"dados pessoais", "dado pessoal", "lgpd", "confidencial",
			"sigiloso", "sigilo", "dados bancários", "cartão de crédito", "login",
		),
		Conversation: NewTermSet(
			"o que conversamos", "nossa conversa", "conversa anterior", "última conversa",
			"ultima conversa", "você disse", "voce disse", "você falou", "eu disse", "eu falei",
			"lembra do que", "mais cedo falamos", "what did we discuss",
		),
		Ops: NewTermSet(
			"erro no sistema", "bug", "bugs", "deploy", "integração", "integrações",
			"sincronização", "webhook", "webhooks",
			"fora do ar", "instabilidade", "lentidão", "status do sistema", "logs",
			"log de erro", "cron job", "rotina agendada", "fila de processamento", "incidente", "manutenção",
		),
		Proposal: NewTermSet(
			"proposta", "propostas", "proposal", "proposals", "cotação", "cotações", "pitch",
			"escopo comercial",
		),
		Survey: NewTermSet(
			"pesquisa de satisfação", "pesquisas de satisfação", "pesquisa de opinião",
			"questionário", "questionários", "formulário", "formulários", "survey", "surveys",
			"nps", "briefing", "briefings", "onboarding",
		),
		Project: NewTermSet(
			"projeto", "projetos", "project", "projects", "campanha", "campanhas", "tráfego",
			"trafego pago", "entrega", "entregas", "cronograma", "sprint", "tarefa", "tarefas",
			"job", "jobs",
		),
		Client: NewTermSet(
			"cliente", "clientes", "client", "clients", "empresa", "empresas", "marca", "marcas",
			"carteira de clientes",
		),
		Users: NewTermSet(
			"usuário", "usuários", "user", "users", "acesso", "acessos", "permissão", "permissões",
			"perfil de acesso", "colaborador", "colaboradores", "equipe", "time interno",
		),
		Governance: NewTermSet(
			"política", "políticas", "procedimento", "procedimentos", "processo interno",
			"regimento", "compliance", "diretriz", "diretrizes", "manual", "código de conduta",
			"normas internas", "norma interna",
		),

		Listing: NewTermSet(
			"liste", "listar", "lista de", "lista dos", "lista das", "quais são", "quais os",
			"quais as", "quantos", "quantas", "todos os", "todas as", "mostre todos",
			"mostre todas", "relação de", "enumere", "list all", "how many",
		),

		Summarization: NewTermSet("resuma", "resumo", "resumir", "sintetize", "síntese", "summarize", "summary"),
		Drafting: NewTermSet(
			"escreva", "redija", "rascunho", "elabore", "crie um e-mail", "crie um email",
			"crie uma mensagem", "draft",
		),
		Analysis: NewTermSet(
			"analise", "análise", "compare", "comparar", "avalie", "por que", "tendência",
			"tendências", "diagnóstico", "analyze",
		),
		Operation: NewTermSet(
			"atualize", "altere", "cadastre", "exclua", "remova", "mude o status", "crie",
			"agende", "envie",
		),

		ProjectStatus: []Qualifier{
			{Value: "active", Terms: NewTermSet("ativo", "ativos", "ativa", "ativas", "em andamento", "active")},
			{Value: "paused", Terms: NewTermSet("pausado", "pausados", "pausada", "paused")},
			{Value: "finished", Terms: NewTermSet("finalizado", "finalizados", "concluído", "concluídos", "encerrado", "encerrados")},
		},
		ProposalStatus: []Qualifier{
			{Value: "accepted", Terms: NewTermSet("aceita", "aceitas", "aprovada", "aprovadas", "fechada", "fechadas")},
			{Value: "rejected", Terms: NewTermSet("recusada", "recusadas", "perdida", "perdidas", "rejeitada")},
			{Value: "open", Terms: NewTermSet("aberta", "abertas", "pendente", "pendentes", "em negociação")},
		},
		ClientStatus: []Qualifier{
			{Value: "active", Terms: NewTermSet("ativo", "ativos", "ativa", "ativas")},
			{Value: "churned", Terms: NewTermSet("inativo", "inativos", "cancelado", "cancelados", "churn")},
		},
		Services: []Qualifier{
			{Value: "traffic", Terms: NewTermSet("tráfego", "trafego", "mídia paga", "ads", "google ads", "meta ads")},
			{Value: "social_media", Terms: NewTermSet("social media", "redes sociais", "instagram")},
			{Value: "seo", Terms: NewTermSet("seo")},
			{Value: "website", Terms: NewTermSet("site", "sites", "landing page", "landing pages", "website")},
		},
		Roles: []Qualifier{
			{Value: "admin", Terms: NewTermSet("admin", "administrador", "administradores")},
			{Value: "manager", Terms: NewTermSet("gestor", "gestores", "gerente", "gerentes")},
			{Value: "member", Terms: NewTermSet("analista", "analistas", "membro", "membros")},
		},
	}
}

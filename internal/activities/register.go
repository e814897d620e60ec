package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SanitizeCasesActivity)
	w.RegisterActivity(a.LLMGenerateActivity)
	w.RegisterActivity(a.EmbedTextsActivity)
	w.RegisterActivity(a.UpsertArticleActivity)
	w.RegisterActivity(a.WriteArticleArtifactActivity)
	w.RegisterActivity(a.CreateRunActivity)
	w.RegisterActivity(a.UpdateRunActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
}

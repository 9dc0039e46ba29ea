package metaculus

// Default tournament identifiers for the bot's run modes. The Metaculus Cup
// ID rotates each season and is overridable in configuration.
const (
	CurrentAICompetitionID = "spring-aib-2026"
	CurrentMiniBenchID     = "minibench"
	CurrentMetaculusCupID  = "32921"
)

// ExampleQuestionURLs is the fixed question list of test_questions mode, one
// per question type worth exercising.
var ExampleQuestionURLs = []string{
	"https://www.metaculus.com/questions/578/human-extinction-by-2100/",
	"https://www.metaculus.com/questions/14333/age-of-oldest-human-as-of-2100/",
	"https://www.metaculus.com/questions/22427/number-of-new-leading-ai-labs/",
	"https://www.metaculus.com/c/diffusion-community/38880/how-many-us-labor-strikes-due-to-ai-in-2029/",
}

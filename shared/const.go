package shared

const (
	UserID = "user_id"

	QuestStatusActive    = "active"
	QuestStatusCompleted = "completed"
	QuestStatusExpired   = "expired"

	QuestTypeSpendingSlayer = "Spending Slayer"
	QuestTypeAssetBuilder   = "Asset Builder"
	QuestTypeKnowledgeHeist = "Knowledge Heist"
	QuestTypeLifestylePivot = "Lifestyle Pivot"
	QuestTypeGeneral        = "General"

	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"

	ContextSourceTheory      = "theory"
	ContextSourceTransaction = "transaction"

	RequirementTransactionCount  = "transaction_count"
	RequirementTransactionAmount = "transaction_amount"
	RequirementAccountCheck      = "account_check"
	RequirementCustom            = "custom"

	QuestBatchSize       = 3
	QuestQuestionCount   = 4
	QuestOptionCount     = 4
	XPHistoryLimit       = 30
	SpendContextLimit    = 20
	DefaultQuestXPReward = 50
	DefaultDailyGoal     = 100
)

package queue

type TaskType string

const (
	TaskTypeProjectAssessment TaskType = "project_assessment"
	TaskTypeQuestionAnswer    TaskType = "question_answer"
)

type Task struct {
	TaskType   TaskType
	ProjectID  int64
	QuestionID *int64 // set for question_answer tasks
	TraceID    *string
	Attempt    int
}

package domain

// HumanInputMode controls when an agent asks a human instead of replying on its own.
type HumanInputMode string

const (
	HumanAlways    HumanInputMode = "ALWAYS"
	HumanNever     HumanInputMode = "NEVER"
	HumanTerminate HumanInputMode = "TERMINATE"
)

type AgentKind string

const (
	KindAssistant  AgentKind = "assistant"
	KindUserProxy  AgentKind = "user_proxy"
	KindExecutor   AgentKind = "executor"
	KindRetrieve   AgentKind = "retrieve_proxy"
	KindMultimodal AgentKind = "multimodal"
)

type SpeakerSelection string

const (
	SelectRoundRobin SpeakerSelection = "round_robin"
	SelectAuto       SpeakerSelection = "auto"
	SelectRandom     SpeakerSelection = "random"
	SelectManual     SpeakerSelection = "manual"
)

// TerminationKeyword closes a conversation when a message ends with it.
const TerminationKeyword = "TERMINATE"

// UpdateContextKeyword asks a retrieval proxy for the next batch of documents.
const UpdateContextKeyword = "UPDATE CONTEXT"

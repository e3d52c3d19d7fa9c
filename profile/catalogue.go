package profile

// Domain groups related themes.
type Domain string

const (
	DomainExecuting            Domain = "Executing"
	DomainInfluencing          Domain = "Influencing"
	DomainRelationshipBuilding Domain = "Relationship Building"
	DomainStrategicThinking    Domain = "Strategic Thinking"
)

// Domains lists the four domains in catalogue order.
var Domains = []Domain{DomainExecuting, DomainInfluencing, DomainRelationshipBuilding, DomainStrategicThinking}

// QuestionsPerTheme is the number of Likert statements per theme.
const QuestionsPerTheme = 3

// Likert answer bounds.
const (
	MinAnswer = 1
	MaxAnswer = 5
)

// Theme is one strength theme.
type Theme struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Domain      Domain `json:"domain"`
	Description string `json:"description"`
}

// Question is one Likert statement. IDs are stable: theme t owns
// questions 3(t-1)+1 .. 3t.
type Question struct {
	ID       int    `json:"id"`
	ThemeID  int    `json:"theme_id"`
	Position int    `json:"position"` // 1..3 within the theme
	Text     string `json:"text"`
}

type themeDef struct {
	name        string
	domain      Domain
	description string
	statements  [QuestionsPerTheme]string
}

var catalogue = []themeDef{
	// Executing
	{"Achiever", DomainExecuting, "Works hard and takes satisfaction in being busy and productive.", [3]string{
		"I feel restless at the end of a day when I have not accomplished something.",
		"I set goals for myself and keep working until I reach them.",
		"I have more energy than most people when there is work to be done.",
	}},
	{"Arranger", DomainExecuting, "Organizes people and resources flexibly for the best result.", [3]string{
		"I like figuring out how all the pieces of a project fit together.",
		"When plans change suddenly, I can rearrange things quickly.",
		"I enjoy coordinating a group so everyone's part gets done.",
	}},
	{"Belief", DomainExecuting, "Holds enduring core values that shape purpose.", [3]string{
		"My values guide most of the decisions I make.",
		"I want the work I do to mean something beyond myself.",
		"I stay committed to what I believe even when it is unpopular.",
	}},
	{"Consistency", DomainExecuting, "Treats people fairly and values clear rules.", [3]string{
		"I believe everyone should be held to the same rules.",
		"It bothers me when someone gets special treatment.",
		"I prefer routines and procedures that are clear to everyone.",
	}},
	{"Deliberative", DomainExecuting, "Makes careful decisions and anticipates obstacles.", [3]string{
		"I think through the risks before I make a decision.",
		"I take my time choosing rather than acting on impulse.",
		"People rely on me to spot problems before they happen.",
	}},
	{"Discipline", DomainExecuting, "Thrives on routine, structure and order.", [3]string{
		"I keep a planner or schedule and stick to it.",
		"I like my workspace and assignments to be well organized.",
		"I break big tasks into steps and do them in order.",
	}},
	{"Focus", DomainExecuting, "Sets direction, prioritizes and follows through.", [3]string{
		"I can concentrate on one task for a long time without getting distracted.",
		"I know what my priorities are and work on them first.",
		"I get frustrated when a group loses sight of its goal.",
	}},
	{"Responsibility", DomainExecuting, "Takes psychological ownership of commitments.", [3]string{
		"When I say I will do something, I always follow through.",
		"I feel personally responsible when something I worked on goes wrong.",
		"People trust me to get things done without being reminded.",
	}},
	{"Restorative", DomainExecuting, "Enjoys finding and solving problems.", [3]string{
		"I enjoy figuring out what went wrong and fixing it.",
		"I like challenges that other people find frustrating.",
		"When something is broken, I want to be the one who repairs it.",
	}},

	// Influencing
	{"Activator", DomainInfluencing, "Turns thoughts into action and gets things started.", [3]string{
		"I would rather start doing something than keep talking about it.",
		"I get impatient when a group spends too long planning.",
		"I am often the one who gets a project moving.",
	}},
	{"Command", DomainInfluencing, "Takes charge and makes decisions with presence.", [3]string{
		"I am comfortable taking charge when no one else will.",
		"I say what I think even when it causes disagreement.",
		"Others look to me to make the final call.",
	}},
	{"Communication", DomainInfluencing, "Puts thoughts into words easily.", [3]string{
		"I find it easy to explain my ideas to other people.",
		"I enjoy speaking in front of a class or group.",
		"I like telling stories that keep people interested.",
	}},
	{"Competition", DomainInfluencing, "Measures progress against others and strives to win.", [3]string{
		"I compare my performance with the performance of others.",
		"Winning matters a lot to me.",
		"Competition brings out my best effort.",
	}},
	{"Maximizer", DomainInfluencing, "Transforms something strong into something superb.", [3]string{
		"I would rather improve something good than fix something weak.",
		"I like helping people get even better at what they already do well.",
		"I am not satisfied with average results.",
	}},
	{"Self-Assurance", DomainInfluencing, "Trusts own judgement and abilities.", [3]string{
		"I trust my own judgement when making important decisions.",
		"I feel confident taking risks.",
		"I do not need others to tell me I am right.",
	}},
	{"Significance", DomainInfluencing, "Wants to make a big impact and be recognized.", [3]string{
		"I want to be known for making a difference.",
		"Recognition for my work motivates me.",
		"I want my achievements to stand out.",
	}},
	{"Woo", DomainInfluencing, "Enjoys meeting new people and winning them over.", [3]string{
		"I enjoy meeting new people and starting conversations.",
		"I can make a stranger feel comfortable quickly.",
		"I like being the one who gets people to join in.",
	}},

	// Relationship Building
	{"Adaptability", DomainRelationshipBuilding, "Goes with the flow and takes life as it comes.", [3]string{
		"I handle unexpected changes without getting stressed.",
		"I prefer to take things one day at a time.",
		"I can switch between tasks easily when something urgent comes up.",
	}},
	{"Connectedness", DomainRelationshipBuilding, "Believes things happen for a reason and links people together.", [3]string{
		"I believe that people and events are connected.",
		"I often see how different ideas relate to each other.",
		"I feel part of something larger than myself.",
	}},
	{"Developer", DomainRelationshipBuilding, "Recognizes and cultivates potential in others.", [3]string{
		"I enjoy helping classmates learn something new.",
		"I notice small improvements in other people.",
		"I like encouraging others to reach their goals.",
	}},
	{"Empathy", DomainRelationshipBuilding, "Senses the feelings of others.", [3]string{
		"I can usually tell how someone feels without them saying it.",
		"Friends come to me when they are upset.",
		"I feel what others are feeling.",
	}},
	{"Harmony", DomainRelationshipBuilding, "Looks for consensus and avoids conflict.", [3]string{
		"I try to find common ground when people disagree.",
		"I dislike arguments and try to calm them down.",
		"I prefer working where everyone gets along.",
	}},
	{"Includer", DomainRelationshipBuilding, "Accepts others and makes them feel part of the group.", [3]string{
		"I make sure no one is left out of the group.",
		"I invite new students to join in.",
		"I accept people as they are.",
	}},
	{"Individualization", DomainRelationshipBuilding, "Is intrigued by the unique qualities of each person.", [3]string{
		"I notice what makes each person different.",
		"I can figure out how to work well with very different people.",
		"I like to learn what motivates each of my friends.",
	}},
	{"Positivity", DomainRelationshipBuilding, "Brings contagious enthusiasm.", [3]string{
		"I can usually find the bright side of a situation.",
		"People say my enthusiasm is contagious.",
		"I like to make activities fun for everyone.",
	}},
	{"Relator", DomainRelationshipBuilding, "Enjoys close relationships with others.", [3]string{
		"I prefer a few close friends over many acquaintances.",
		"I enjoy working with people I already know well.",
		"I share personal things only with people I trust.",
	}},

	// Strategic Thinking
	{"Analytical", DomainStrategicThinking, "Searches for reasons and causes.", [3]string{
		"I want to see the evidence before I believe something.",
		"I like to find patterns in data or information.",
		"I ask why until I understand the real cause.",
	}},
	{"Context", DomainStrategicThinking, "Looks to the past to understand the present.", [3]string{
		"I like understanding the history behind a situation.",
		"Looking at the past helps me make decisions.",
		"I enjoy learning how things came to be the way they are.",
	}},
	{"Futuristic", DomainStrategicThinking, "Is inspired by what could be.", [3]string{
		"I often imagine what my life will look like years from now.",
		"I get excited thinking about future possibilities.",
		"I can inspire others with my vision of the future.",
	}},
	{"Ideation", DomainStrategicThinking, "Is fascinated by ideas and connections.", [3]string{
		"I come up with new ideas easily.",
		"I enjoy brainstorming creative solutions.",
		"I like finding connections between things that seem unrelated.",
	}},
	{"Input", DomainStrategicThinking, "Craves to know more and collects information.", [3]string{
		"I like collecting information, articles or facts.",
		"I am curious about many different subjects.",
		"I keep things because they might be useful later.",
	}},
	{"Intellection", DomainStrategicThinking, "Enjoys intellectual activity and reflection.", [3]string{
		"I enjoy time alone to think.",
		"I like discussing deep questions.",
		"I enjoy thinking about ideas just for the sake of it.",
	}},
	{"Learner", DomainStrategicThinking, "Loves the process of learning.", [3]string{
		"I enjoy learning new things even when they are not required.",
		"I get excited at the start of a new class or topic.",
		"The process of learning matters more to me than the grade.",
	}},
	{"Strategic", DomainStrategicThinking, "Sees alternative paths and spots patterns quickly.", [3]string{
		"I can quickly see different ways to reach a goal.",
		"I think through several options before choosing a path.",
		"I can spot the best route when others see only problems.",
	}},
}

var (
	themes       []Theme
	questions    []Question
	themeByID    map[int]Theme
	questionByID map[int]Question
)

func init() {
	themeByID = make(map[int]Theme, len(catalogue))
	questionByID = make(map[int]Question, len(catalogue)*QuestionsPerTheme)
	for i, def := range catalogue {
		t := Theme{ID: i + 1, Name: def.name, Domain: def.domain, Description: def.description}
		themes = append(themes, t)
		themeByID[t.ID] = t
		for k, text := range def.statements {
			q := Question{ID: i*QuestionsPerTheme + k + 1, ThemeID: t.ID, Position: k + 1, Text: text}
			questions = append(questions, q)
			questionByID[q.ID] = q
		}
	}
}

// Themes returns the 34 themes ordered by id.
func Themes() []Theme { return append([]Theme(nil), themes...) }

// Questions returns every statement ordered by id.
func Questions() []Question { return append([]Question(nil), questions...) }

// ThemeByID looks up a theme.
func ThemeByID(id int) (Theme, bool) {
	t, ok := themeByID[id]
	return t, ok
}

// QuestionByID looks up a question.
func QuestionByID(id int) (Question, bool) {
	q, ok := questionByID[id]
	return q, ok
}

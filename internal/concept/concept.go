package concept

import "fmt"

// ID names one of the lab topics. The zero value is the idle lab.
type ID string

const (
	Idle          ID = ""
	Superposition ID = "superposition"
	Entanglement  ID = "entanglement"
	QKD           ID = "qkd"
)

// Descriptor is a read-only lab topic.
type Descriptor struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Detail      string `json:"detail"`
}

// ShortTitle is the title without its English gloss.
func (d Descriptor) ShortTitle() string {
	for i, r := range d.Title {
		if r == ' ' {
			return d.Title[:i]
		}
	}
	return d.Title
}

// ComparisonRow contrasts one property of classical and quantum channels.
type ComparisonRow struct {
	Feature     string `json:"feature"`
	Traditional string `json:"traditional"`
	Quantum     string `json:"quantum"`
	Icon        string `json:"icon"`
}

type IntroStep struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var concepts = []Descriptor{
	{
		ID:          Superposition,
		Title:       "量子叠加 (Superposition)",
		Description: "一枚旋转中的硬币。",
		Icon:        "Zap",
		Detail:      "在经典世界，开关要么开要么关。在量子世界，一个粒子可以同时处于“开”和“关”的叠加状态。只有当你去“看”（测量）它时，它才会随机决定变成其中一种。",
	},
	{
		ID:          Entanglement,
		Title:       "量子纠缠 (Entanglement)",
		Description: "宇宙级的双胞胎感应。",
		Icon:        "Share2",
		Detail:      "两颗纠缠的粒子像是有隐形连线的双胞胎。无论它们相隔多远，当你观察其中一颗发现是“0”时，另一颗会瞬间变成“1”。这就是量子通信能够瞬间同步状态的基础。",
	},
	{
		ID:          QKD,
		Title:       "安全保障 (QKD)",
		Description: "不可窃听的“一次一密”。",
		Icon:        "Lock",
		Detail:      "量子秘钥分发利用了“测量即破坏”原理。如果有人试图窃听（测量）量子信号，信号会立即发生改变，发送者和接收者能瞬间察觉，从而保证通信的绝对安全。",
	},
}

var comparisons = []ComparisonRow{
	{Feature: "基本单位", Traditional: "比特 (0 或 1)", Quantum: "量子比特 (叠加态)", Icon: "Cpu"},
	{Feature: "可复制性", Traditional: "可无限完美复制", Quantum: "不可克隆 (物理定律)", Icon: "Copy"},
	{Feature: "安全基础", Traditional: "数学复杂度 (可破解)", Quantum: "物理定律 (绝对安全)", Icon: "Shield"},
}

var introSteps = []IntroStep{
	{Title: "什么是量子通信？", Content: "它不是超光速传送文字，而是利用微观粒子的量子特性（如纠缠）来传递信息或生成加密秘钥的一种全新通信方式。"},
	{Title: "核心优势是什么？", Content: "传统通信会被监听和复制，但量子通信受物理定律保护，任何监听都会留下痕迹，是目前理论上唯一的“绝对安全”通信。"},
}

// SystemPrompt is the fixed instruction sent with every chat request.
const SystemPrompt = `你是一位世界级的量子物理学教育专家。
请遵守以下原则：
1. 避开复杂的数学公式，多用直观类比。
2. 针对用户在实验室的操作（如点击了“测量”或“纠缠”）进行即时解释。
3. 重点解释量子通信如何超越传统通信的安全性限制。
4. 强调量子通信需要经典信道（如光纤）协同，并非纯粹的瞬间移动信息。
5. 语气要亲切、富有启发性。`

// Welcome opens every transcript.
const Welcome = "欢迎来到量子通信实验室。请先在左侧选择一个实验课题，观察量子世界与传统世界的奇妙差异。"

var labPrompts = map[ID]string{
	Superposition: "我观察了量子叠加态，它坍缩了。请详细解释这在通信中意味着什么？",
	Entanglement:  "我完成了纠缠测量。为什么这种关联性对量子通信至关重要？",
	QKD:           "我模拟了拦截攻击，系统报错了。量子力学是如何从物理层面防止复制信息的？",
}

// All returns the topics in display order.
func All() []Descriptor {
	out := make([]Descriptor, len(concepts))
	copy(out, concepts)
	return out
}

func Comparisons() []ComparisonRow {
	out := make([]ComparisonRow, len(comparisons))
	copy(out, comparisons)
	return out
}

func IntroSteps() []IntroStep {
	out := make([]IntroStep, len(introSteps))
	copy(out, introSteps)
	return out
}

// Get looks up a topic by id.
func Get(id ID) (Descriptor, bool) {
	for _, c := range concepts {
		if c.ID == id {
			return c, true
		}
	}
	return Descriptor{}, false
}

// Parse converts user input into a known topic id.
func Parse(s string) (ID, error) {
	if s == "" || s == "idle" {
		return Idle, nil
	}
	if _, ok := Get(ID(s)); ok {
		return ID(s), nil
	}
	return Idle, fmt.Errorf("unknown topic: %s", s)
}

// IntroQuestion is the question sent when a topic is selected.
func IntroQuestion(d Descriptor) string {
	return fmt.Sprintf("我想深入了解 %s。它在量子通信中是如何运作的？", d.Title)
}

// LabPrompt is the question sent after the lab action for a topic.
func LabPrompt(id ID) string {
	return labPrompts[id]
}

// ActionLabel is the caption of the lab action button.
func ActionLabel(id ID, measured bool) string {
	if measured {
		return "重置实验环境"
	}
	if id == QKD {
		return "模拟量子窃听"
	}
	return "执行量子测量"
}

// Mode is the badge text shown above the lab.
func Mode(id ID) string {
	if id == Idle {
		return "IDLE"
	}
	return string(id)
}

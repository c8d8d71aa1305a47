// Package messages holds the bilingual message templates for exercise
// reminders and reply acknowledgments, and composes the outbound response
// for a classified inbound reply.
package messages

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// DefaultPlan is used when a member's exercise plan name is empty or unknown.
const DefaultPlan = "senior_beginner"

// Routine is one day's exercise routine within a plan.
type Routine struct {
	Title     string
	Exercises []string
	Tips      string
}

// exercisePlans maps plan names to rotating daily routines. The
// senior_beginner plan is gentle and safety-focused for the 60+ group;
// adult_intermediate is a harder two-day rotation.
var exercisePlans = map[string][]Routine{
	"senior_beginner": {
		{
			Title: "平板支撑 + 轻量训练 (Day A)",
			Exercises: []string{
				"🧘 平板支撑 (Plank): 从膝盖跪姿开始，保持20秒 x 3组，组间休息30秒",
				"💪 墙壁俯卧撑 (Wall Push-ups): 面对墙壁，双手撑墙，做10次 x 2组",
				"🦵 椅子辅助深蹲 (Chair Squats): 慢慢坐下再站起，10次 x 2组",
				"🏋️ 轻哑铃弯举 (Light Dumbbell Curls): 2-3磅，每侧10次 x 2组",
			},
			Tips: "⚠️ 注意：动作要慢，呼吸要稳。如果感到头晕或疼痛，请立即停止。",
		},
		{
			Title: "平衡 + 核心训练 (Day B)",
			Exercises: []string{
				"🧘 平板支撑 (Plank): 膝盖跪姿，保持25秒 x 3组",
				"🦶 单脚站立 (Single Leg Stand): 扶椅子，每侧15秒 x 3次",
				"🏋️ 轻哑铃侧举 (Lateral Raises): 2磅，每侧8次 x 2组",
				"🚶 原地踏步 (Marching in Place): 抬高膝盖，2分钟",
			},
			Tips: "⚠️ 确保周围有稳固的支撑物。慢慢来，安全第一！",
		},
		{
			Title: "上肢 + 柔韧性 (Day C)",
			Exercises: []string{
				"🧘 平板支撑 (Plank): 膝盖跪姿，保持30秒 x 3组",
				"💪 弹力带划船 (Resistance Band Rows): 10次 x 2组",
				"🏋️ 轻哑铃推举 (Overhead Press): 2磅，8次 x 2组",
				"🧘 坐姿拉伸 (Seated Stretches): 每个动作保持15秒",
			},
			Tips: "⚠️ 拉伸时不要弹跳，保持稳定的拉伸感即可。",
		},
	},
	"adult_intermediate": {
		{
			Title: "核心 + 力量 (Day A)",
			Exercises: []string{
				"🧘 平板支撑 (Plank): 标准姿势 45秒 x 4组",
				"💪 俯卧撑 (Push-ups): 15次 x 3组",
				"🦵 深蹲 (Squats): 20次 x 3组",
				"🏋️ 哑铃弯举 (Dumbbell Curls): 15磅，12次 x 3组",
			},
			Tips: "💡 保持核心收紧，注意呼吸节奏。",
		},
		{
			Title: "全身训练 (Day B)",
			Exercises: []string{
				"🧘 侧平板支撑 (Side Plank): 每侧30秒 x 3组",
				"🏋️ 硬拉 (Deadlifts): 适当重量，10次 x 3组",
				"💪 引体向上或弹力带辅助 (Pull-ups): 8次 x 3组",
				"🚴 开合跳 (Jumping Jacks): 30秒 x 3组",
			},
			Tips: "💡 硬拉注意保持背部平直，不要弓背。",
		},
	},
}

var greetings = []string{
	"早上好！",
	"你好！",
	"新的一天，新的开始！",
	"今天也要加油哦！",
	"美好的一天从运动开始！",
}

var motivations = []string{
	"坚持就是胜利！每一次锻炼都在让身体更强壮 💪",
	"运动是最好的投资，您的身体会感谢您的 ❤️",
	"慢慢来，比不做强！您做得很棒 👍",
	"健康是最大的财富，继续保持！🌟",
	"每一步都算数，您正在变得更健康 🎯",
}

// ConfirmationPrompt is appended to every exercise reminder.
const ConfirmationPrompt = "\n\n✅ 做完了请回复 OK\n❌ 如需暂停提醒请回复 NO"

// Motivation picks one of the fixed motivational phrases.
func Motivation() string {
	return motivations[rand.Intn(len(motivations))]
}

// PlanRoutines returns the routines for a plan, falling back to the default
// plan for unknown names.
func PlanRoutines(planName string) []Routine {
	if plan, ok := exercisePlans[planName]; ok {
		return plan
	}
	return exercisePlans[DefaultPlan]
}

// ExerciseMessage builds a personalized exercise reminder. messageIndex
// rotates through the plan's routines modulo the plan length.
func ExerciseMessage(name, planName string, messageIndex int) string {
	plan := PlanRoutines(planName)
	routine := plan[messageIndex%len(plan)]

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s，\n\n", greetings[rand.Intn(len(greetings))], name)
	fmt.Fprintf(&b, "📋 今天的锻炼计划: %s\n\n", routine.Title)
	for _, ex := range routine.Exercises {
		b.WriteString("  " + ex + "\n")
	}
	b.WriteString("\n" + routine.Tips + "\n\n")
	b.WriteString(motivations[rand.Intn(len(motivations))])
	b.WriteString(ConfirmationPrompt)
	return b.String()
}

// OptOutConfirmation is sent when a member pauses their reminders.
func OptOutConfirmation(name string) string {
	return fmt.Sprintf(
		"%s，已收到您的请求。提醒已暂停。\n\n如果以后想重新开始，随时回复 START 即可。\n祝您健康快乐！❤️",
		name)
}

// OptInConfirmation is sent when a member resumes their reminders.
func OptInConfirmation(name string) string {
	return fmt.Sprintf(
		"太好了 %s！欢迎回来！\n\n提醒已重新开启，我们会继续每隔一天给您发送锻炼提醒。\n一起加油！💪",
		name)
}

// okAcknowledgments are the possible replies when a member confirms their
// exercise is done.
func okAcknowledgments(name string) []string {
	return []string{
		fmt.Sprintf("👏 太棒了 %s！今天的锻炼完成了，继续保持！", name),
		fmt.Sprintf("💪 好样的 %s！坚持锻炼，身体会越来越好！", name),
		fmt.Sprintf("🌟 %s 真厉害！又完成了一天的锻炼！", name),
		fmt.Sprintf("❤️ %s，做得好！休息一下，明天继续加油！", name),
	}
}

// OKAcknowledgment picks one of the fixed acknowledgment phrases.
func OKAcknowledgment(name string) string {
	choices := okAcknowledgments(name)
	return choices[rand.Intn(len(choices))]
}

var bpCategoryText = map[string]string{
	"normal":      "正常 ✅",
	"elevated":    "偏高 ⚠️",
	"high_stage1": "高血压一期 ⚠️",
	"high_stage2": "高血压二期 🔴",
	"crisis":      "危险！请立即就医 🚨",
}

var bsCategoryText = map[string]string{
	"low":         "偏低 ⚠️",
	"normal":      "正常 ✅",
	"prediabetic": "糖尿病前期 ⚠️",
	"diabetic":    "偏高 🔴",
}

var hrCategoryText = map[string]string{
	"low":    "偏低",
	"normal": "正常 ✅",
	"high":   "偏高 ⚠️",
}

// ReadingConfirmation builds the bilingual confirmation for a recorded
// health reading. Unknown categories fall through to the raw category name.
func ReadingConfirmation(r *models.HealthReading) string {
	switch r.Kind {
	case models.ReadingBloodPressure:
		catText, ok := bpCategoryText[r.Category]
		if !ok {
			catText = r.Category
		}
		return fmt.Sprintf(
			"📊 血压记录成功！\n收缩压/舒张压: %d/%d mmHg\n分类: %s\n\nBlood pressure recorded: %d/%d\nCategory: %s",
			r.Systolic, r.Diastolic, catText, r.Systolic, r.Diastolic, r.Category)

	case models.ReadingBloodSugar:
		catText, ok := bsCategoryText[r.Category]
		if !ok {
			catText = r.Category
		}
		return fmt.Sprintf("📊 血糖记录成功！\n数值: %s %s\n分类: %s",
			formatValue(r.Value), r.Unit, catText)

	case models.ReadingWeight:
		return fmt.Sprintf("📊 体重记录成功！\nWeight: %s %s", formatValue(r.Value), r.Unit)

	case models.ReadingHeartRate:
		catText, ok := hrCategoryText[r.Category]
		if !ok {
			catText = r.Category
		}
		return fmt.Sprintf("📊 心率记录成功！\nHeart rate: %s bpm\n分类: %s",
			formatValue(r.Value), catText)
	}
	return "📊 健康数据已记录！"
}

// UnknownReply echoes the member's message and restates the two commands.
func UnknownReply(body string) string {
	return fmt.Sprintf(
		"收到您的消息：\"%s\"\n如有需要，回复 OK 确认完成锻炼，或回复 NO 暂停提醒。",
		strings.TrimSpace(body))
}

// ComposeReply turns a classified intent into the outbound response body.
func ComposeReply(intent models.Intent, name string) string {
	switch intent.Type {
	case models.IntentOptOut:
		return OptOutConfirmation(name)
	case models.IntentOptIn:
		return OptInConfirmation(name)
	case models.IntentAcknowledge:
		return OKAcknowledgment(name)
	case models.IntentHealthData:
		return ReadingConfirmation(intent.Reading)
	}
	return UnknownReply(intent.Text)
}

// formatValue renders a reading value without a trailing ".0" for whole
// numbers, matching how values appear in inbound messages.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

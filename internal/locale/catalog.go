package locale

// catalog maps label keys to {en, zh}. An empty zh entry falls back to en.
var catalog = map[string][2]string{
	"app.title":    {"Tech Intelligence", "科技情报"},
	"app.subtitle": {"Daily signal from the people building AI", "来自 AI 建设者的每日信号"},

	"status.online":   {"Online", "在线"},
	"status.offline":  {"Offline", "离线"},
	"status.unknown":  {"Checking…", "检查中…"},
	"status.ready":    {"Ready", "就绪"},
	"status.notready": {"Not ready", "未就绪"},
	"status.x":        {"X API", "X API"},
	"status.claude":   {"Claude API", "Claude API"},
	"status.ok":       {"configured", "已配置"},
	"status.missing":  {"missing", "未配置"},

	"stats.influencers": {"Influencers", "关注账号"},
	"stats.posts":       {"Posts analyzed", "已分析帖子"},
	"stats.trends":      {"Trends", "趋势"},
	"stats.updated":     {"Last updated", "最后更新"},
	"stats.never":       {"never", "从未"},

	"topics.title": {"Trending topics", "热门话题"},
	"topics.new":   {"NEW", "新"},
	"topics.empty": {"No trending topics yet.", "暂无热门话题。"},

	"reports.title":   {"Recent reports", "近期报告"},
	"reports.empty":   {"No reports yet. Generate the first one.", "暂无报告，请先生成一份。"},
	"reports.id":      {"ID", "编号"},
	"reports.date":    {"Date", "日期"},
	"reports.report":  {"Report", "报告"},
	"reports.posts":   {"Posts", "帖子"},
	"reports.score":   {"Score", "评分"},
	"reports.fading":  {"removing…", "删除中…"},
	"reports.confirm": {"Delete report %s? This cannot be undone.", "删除报告 %s？此操作无法撤销。"},
	"reports.deleted": {"Report %s deleted.", "报告 %s 已删除。"},

	"report.title":      {"Report", "报告"},
	"report.generated":  {"Generated", "生成时间"},
	"report.totals":     {"%d posts from %d influencers", "%d 条帖子，来自 %d 位关注账号"},
	"report.summary":    {"Executive summary", "执行摘要"},
	"report.insight":    {"Visual insight", "视觉洞察"},
	"report.trends":     {"Strategic trends", "战略趋势"},
	"report.highlights": {"Influencer highlights", "关注账号亮点"},
	"report.none":       {"No reports yet.", "暂无报告。"},
	"report.engagement": {"%d likes · %d shares", "%d 赞 · %d 转发"},

	"report.direction.up":   {"rising", "上升"},
	"report.direction.down": {"falling", "下降"},

	"job.queued":       {"Queued…", "排队中…"},
	"job.running":      {"Generating report…", "正在生成报告…"},
	"job.completed":    {"Report generated.", "报告已生成。"},
	"job.failed":       {"Generation failed: %s", "生成失败：%s"},
	"job.connectivity": {"Lost connection while generating.", "生成过程中连接中断。"},
	"job.timeout":      {"Generation timed out.", "生成超时。"},
	"job.cancelled":    {"Stopped watching the job.", "已停止跟踪任务。"},
	"job.active":       {"A report is already being generated.", "已有报告正在生成。"},
	"job.unavailable":  {"Backend offline or not ready.", "后端离线或未就绪。"},

	"notice.offline": {"Backend offline. Start the server and refresh.", "后端离线，请启动服务后刷新。"},
	"notice.refresh": {"Refresh failed: %s", "刷新失败：%s"},

	"help.generate": {"generate", "生成"},
	"help.refresh":  {"refresh", "刷新"},
	"help.latest":   {"latest report", "最新报告"},
	"help.open":     {"open", "打开"},
	"help.delete":   {"delete", "删除"},
	"help.download": {"download", "下载"},
	"help.lang":     {"中文/EN", "中文/EN"},
	"help.theme":    {"theme", "主题"},
	"help.back":     {"back", "返回"},
	"help.cancel":   {"stop watching", "停止跟踪"},
	"help.quit":     {"quit", "退出"},
	"help.yes":      {"yes", "是"},
	"help.no":       {"no", "否"},
	"help.move":     {"move", "移动"},
	"help.more":     {"more", "更多"},
	"help.scroll":   {"scroll report", "滚动报告"},
	"help.history":  {"downloads", "下载记录"},

	"download.saved": {"Saved %s (%d bytes).", "已保存 %s（%d 字节）。"},
	"theme.changed":  {"Theme: %s", "主题：%s"},

	"download.none":   {"No reports downloaded yet.", "尚未下载报告。"},
	"download.recent": {"Recent downloads: %s", "最近下载：%s"},
	"download.file":   {"File", "文件"},
	"download.bytes":  {"Bytes", "字节"},
	"download.when":   {"Saved", "保存时间"},

	"prefs.none":    {"No preferences saved; defaults apply.", "尚未保存偏好，使用默认值。"},
	"prefs.reset":   {"Preferences reset to defaults.", "偏好已恢复默认。"},
	"prefs.key":     {"Preference", "偏好"},
	"prefs.value":   {"Value", "值"},
	"prefs.updated": {"Updated", "更新时间"},
}

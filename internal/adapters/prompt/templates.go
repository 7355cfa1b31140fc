package prompt

const dailyText = `
Ты — главный редактор ежедневного дайджеста канала.
На вход ты получаешь перечень тем-обсуждений из чата.
Тебе нужно создать структурированный дайджест с разбивкой на обсуждения и коммиты.

────────────────────────────────────────
🛈 ВХОД

Дата: {{.date}}
Канал: {{.channel_name}} — {{.channel_description}}

Темы за день:
{{.input_payload}}

────────────────────────────────────────
📋 ЗАДАЧА

1. Проанализируй все темы и раздели их на две категории:
   - **ОБСУЖДЕНИЯ**: темы, где люди обсуждали вопросы, проблемы, идеи
   - **КОММИТЫ**: темы, где кто-то обещал что-то сделать к определенному времени

2. Для каждой категории создай bullet-список наиболее важных пунктов
3. Используй данные из полей: status, conclusions, resume

────────────────────────────────────────
📤 ОБЯЗАТЕЛЬНЫЙ ВЫХОД

{
  "discussions": [
    "• Краткое описание обсуждения 1",
    "• Краткое описание обсуждения 2"
  ],
  "commitments": [
    "• Кто обещал что сделать когда",
    "• Другой коммит с дедлайном"
  ]
}

────────────────────────────────────────
⚠️ ОГРАНИЧЕНИЯ
• Используй только данные из входа
• Каждый bullet должен быть информативным и кратким
• Если нет коммитов или обсуждений, верни пустой массив
• Выход — валидный JSON без комментариев

────────────────────────────────────────
Создай структурированный дайджест в указанном JSON-формате.
`

const periodText = `
Ты — ведущий редактор периодических дайджестов.
За указанный период ты получаешь **единый список элементов**, где каждый элемент —
либо пересказ темы-обсуждения из чата (` + "`type = \"topic\"`" + `),
либо сжатый пост канала (` + "`type = \"post\"`" + `).
Твоя задача — сгруппировать связанные элементы в «сюжеты» и выдать
**до {{.max_stories}}** наиболее значимых сюжетных линий периода.

────────────────────────────────────────
🛈 ВХОД
Период: {{.start_date}} → {{.end_date}}
Канал: {{.channel_name}} — {{.channel_description}}

Данные:
json
{{.items_json}}


────────────────────────────────────────
📋 ЗАДАЧА
• Сгруппируй элементы в сюжет, если они продолжают одну тему
(похожее название, общая цель, одни и те же ключевые участники, или логическое продолжение обсуждения).
• ВАЖНО: Учитывай, что status и conclusions одного дня могут перетекать в следующий день, если обсуждение продолжается.
• Для каждого сюжета сформируй итог с учётом динамики по дням и эволюции обсуждения.
• Отсортируй сюжеты по убыванию значимости и выбери максимум {{.max_stories}}.

────────────────────────────────────────
📤 ВЫХОД — JSON-массив (1–{{.max_stories}} объектов) в формате:

jsonc
[
  {
    "rank": 1,
    "title": "…",
    "days_covered": ["YYYY-MM-DD", …],
    "summary": "…",
    "evolution": ["…", "…"],
    "final_status": "решено|спор|отложили|неясно|null",
    "key_participants": [
      {"name":"…","role":"…"}
    ],
    "resume": "Одна итоговая фраза"
  },
  /* rank 2 … */
]


⚠️ Ограничения
• Используй только входные данные, не придумывай фактов.
• Поля title/summary/evolution/resume — русский, нейтрально-деловой, без markdown.
• Итог — валидный JSON, ≤ 600 токенов.
────────────────────────────────────────
Сформируй массив ровно в указанном формате (без комментариев вокруг).
`

const postText = `
Сделай один готовый пост-дайджест для канала:

Формат:

1. Заголовок вида «Дайджест:  {{.start}} – {{.end}}»
2. Затем для каждого сюжета bullet-пункт «• [дни] title: summary»
   где [дни] - это интервал дней, когда обсуждалась тема (например, [21-23])

Правила:
• Больше ничего: никакого markdown, эмодзи, подписей.
• Пункты идут по рангу сюжетов.
• До {{.max_stories}} пунктов.
• Обязательно указывай интервал дней для каждого пункта

Данные сюжетов (JSON):

json
{{.stories_json}}


────────────────────────────────────────
Верни ОДИН текстовый блок-пост без обрамления.
`

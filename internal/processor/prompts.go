package processor

import "fmt"

// 提示词保持英文，与模型的训练分布一致

// atsSystemPrompt ATS评分的系统提示词
const atsSystemPrompt = `You are an ATS (Applicant Tracking System) analyzer.
Analyze the resume against the job description and provide a comprehensive JSON response.

Calculate ATS score (0-100) based on:
- Skills Match (40%): How many required skills are present
- Experience Relevance (30%): How relevant is their experience
- Education Match (15%): Does education meet requirements
- Resume Quality (15%): Formatting, clarity, achievements

Be strict but fair in scoring.`

// qualitySystemPrompt 无职位描述时质量评估的系统提示词
const qualitySystemPrompt = `You are a professional resume reviewer.
Analyze the resume quality and provide constructive feedback.

Quality score (0-100) based on:
- Clarity and formatting
- Quantified achievements
- Skill presentation
- Professional summary`

// buildATSUserPrompt 构造ATS评分的用户提示词
// ragContext为向量检索出的相关简历片段
func buildATSUserPrompt(resumeText, jdText, ragContext string) string {
	return fmt.Sprintf(`**RESUME:**
%s

**JOB DESCRIPTION:**
%s

**RELEVANT RESUME SECTIONS (from vector search):**
%s

Analyze and return JSON:
{
    "ats_score": 75.5,
    "score_breakdown": {
        "skills_score": 30.0,
        "experience_score": 22.5,
        "education_score": 12.0,
        "quality_score": 11.0
    },
    "extracted_info": {
        "name": "John Doe",
        "email": "john@example.com",
        "phone": "123-456-7890",
        "skills": ["Python", "React", "AWS"],
        "experience": ["Senior Developer at XYZ Corp"],
        "education": ["BS Computer Science"],
        "years_of_experience": 5,
        "summary": "brief summary"
    },
    "matched_skills": ["Python", "React"],
    "missing_skills": ["Docker", "Kubernetes"],
    "strengths": ["Strong technical background", "Clear achievements"],
    "suggestions": ["Add Docker experience", "Quantify more achievements"],
    "overall_feedback": "Candidate shows solid experience..."
}`, resumeText, jdText, ragContext)
}

// buildQualityUserPrompt 构造质量评估的用户提示词
func buildQualityUserPrompt(resumeText string) string {
	return fmt.Sprintf(`**RESUME:**
%s

Analyze and return JSON:
{
    "quality_score": 82.0,
    "extracted_info": {
        "name": "John Doe",
        "email": "john@example.com",
        "phone": "123-456-7890",
        "skills": ["Python", "React"],
        "experience": ["Senior Developer at XYZ"],
        "education": ["BS Computer Science"],
        "years_of_experience": 5,
        "summary": "brief summary"
    },
    "strengths": ["Well structured", "Clear skills section"],
    "suggestions": ["Add more quantified achievements"],
    "feedback": "This is a well-crafted resume..."
}`, resumeText)
}

// buildExtractInfoPrompt 构造简历信息抽取的提示词
func buildExtractInfoPrompt(resumeText string) string {
	return fmt.Sprintf(`Extract information from this resume as JSON:

{
    "name": "full name or null",
    "email": "email or null",
    "phone": "phone or null",
    "skills": ["list", "of", "skills"],
    "experience": ["job title at company", ...],
    "education": ["degree from school", ...],
    "summary": "brief summary"
}

Resume:
%s

Return ONLY the JSON, nothing else.`, resumeText)
}

// buildExtractJDPrompt 构造职位要求抽取的提示词
func buildExtractJDPrompt(jdText string) string {
	return fmt.Sprintf(`Extract requirements from this job description as JSON:

{
    "required_skills": ["skill1", "skill2"],
    "preferred_skills": ["skill1", "skill2"],
    "experience_required": "X years",
    "education_required": "degree"
}

Job Description:
%s

Return ONLY the JSON.`, jdText)
}
